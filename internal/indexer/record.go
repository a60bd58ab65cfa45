package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"file-server/internal/database"
	"file-server/internal/filesystem"
	"file-server/internal/filter"
)

// errNotRegular is returned by BuildRecord for directories, symlinks and
// other non-regular files. Callers skip such paths silently.
var errNotRegular = errors.New("not a regular file")

// BuildRecord reads the metadata of path without following symlinks and
// returns its IndexRecord. Read failures wrap ErrFileAccess.
func BuildRecord(path string, retry filesystem.RetryConfig) (database.IndexRecord, error) {
	info, err := filesystem.LstatWithRetry(path, retry)
	if err != nil {
		return database.IndexRecord{}, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	if !info.Mode().IsRegular() {
		return database.IndexRecord{}, errNotRegular
	}
	return recordFromInfo(path, info), nil
}

func recordFromInfo(path string, info fs.FileInfo) database.IndexRecord {
	normalized := filter.NormalizePath(path)
	return database.IndexRecord{
		Path:     normalized,
		Filename: filepath.Base(path),
		Size:     uint64(info.Size()),
		Mtime:    unixSeconds(info.ModTime().Unix()),
		Ctime:    createTime(path),
	}
}

// IsModified reports whether the file behind rec differs from the stored
// metadata. A file that can no longer be read counts as modified.
func IsModified(rec database.IndexRecord) bool {
	info, err := os.Lstat(rec.Path)
	if err != nil {
		return true
	}
	return uint64(info.Size()) != rec.Size ||
		unixSeconds(info.ModTime().Unix()) != rec.Mtime ||
		createTime(rec.Path) != rec.Ctime
}

func unixSeconds(sec int64) uint64 {
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}
