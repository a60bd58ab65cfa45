/*
Package filesystem wraps the reads the crawler performs (os.Lstat and
os.ReadDir) with retry logic for NFS stale file handle errors.

Only ESTALE triggers a retry. Every other error is returned on the first
attempt so missing files and permission failures cost nothing extra.

	info, err := filesystem.LstatWithRetry(path, filesystem.DefaultRetryConfig())

The defaults retry three times with exponential backoff from 50ms capped at
500ms. Metric recording goes through an Observer installed once at startup
with SetObserver; without one, recording is skipped.

WalkFiles visits every regular file under a root without following
symlinks. Unreadable directories are logged and skipped, and directories in
WalkOptions.Skip are never entered, which is how nested mount points and
virtual filesystems are kept out of a crawl.
*/
package filesystem
