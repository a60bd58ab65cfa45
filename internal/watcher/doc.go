// Package watcher keeps the index in step with the filesystem between full
// crawls.
//
// A Source turns OS changes into Events: PollSource diffs periodic snapshots
// of the mount points, NotifySource wraps fsnotify. Start launches exactly
// one consumer goroutine that applies events through a Handler strictly one
// at a time, so two events for the same path can never be applied out of
// order. Source errors are logged and followed by a five second pause; the
// consumer exits only when Stop is called on its handle.
package watcher
