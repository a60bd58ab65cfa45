package filesystem

import (
	"context"
	"path/filepath"
	"strings"

	"file-server/internal/logging"
)

// WalkOptions configures WalkFiles.
type WalkOptions struct {
	Retry RetryConfig
	// Skip holds directories that are not descended into, such as other
	// mount points walked separately or pseudo filesystems.
	Skip map[string]bool
	// Include, when set, filters regular files before they are reported.
	Include func(path string) bool
}

// IsWithin reports whether path is dir or lies below it. Both are cleaned
// first; no symlinks are resolved.
func IsWithin(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}

// WalkFiles calls fn for every regular file under root. Symlinks are never
// followed. Unreadable directories are logged and skipped. The walk stops
// early when ctx is done or fn returns an error.
func WalkFiles(ctx context.Context, root string, opts WalkOptions, fn func(path string) error) error {
	return walkDir(ctx, filepath.Clean(root), opts, fn)
}

func walkDir(ctx context.Context, dir string, opts WalkOptions, fn func(path string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := ReadDirWithRetry(dir, opts.Retry)
	if err != nil {
		logging.Debug("Skipping unreadable directory %s: %v", dir, err)
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			if opts.Skip[path] {
				continue
			}
			if err := walkDir(ctx, path, opts, fn); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if opts.Include != nil && !opts.Include(path) {
				continue
			}
			if err := fn(path); err != nil {
				return err
			}
		}
	}
	return nil
}
