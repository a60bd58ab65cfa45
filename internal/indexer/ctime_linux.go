package indexer

import "golang.org/x/sys/unix"

// createTime returns the birth time of path in Unix seconds, or 0 when the
// filesystem does not record one.
func createTime(path string) uint64 {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return 0
	}
	return unixSeconds(stx.Btime.Sec)
}
