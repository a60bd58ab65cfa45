//go:build !linux

package indexer

// createTime is not available on this platform.
func createTime(string) uint64 {
	return 0
}
