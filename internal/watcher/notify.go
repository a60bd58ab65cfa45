package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"file-server/internal/filesystem"
	"file-server/internal/logging"
)

// NotifySource translates fsnotify events into Events. fsnotify watches are
// not recursive, so every directory under the roots is added individually
// and new directories are added as they appear.
type NotifySource struct {
	fsWatcher *fsnotify.Watcher
	opts      filesystem.WalkOptions

	events chan Event
	errors chan error
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifySource registers every directory under roots with fsnotify.
func NewNotifySource(roots []string, opts filesystem.WalkOptions) (*NotifySource, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &NotifySource{
		fsWatcher: fsWatcher,
		opts:      opts,
		events:    make(chan Event, 64),
		errors:    make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	watched := 0
	for _, root := range roots {
		watched += n.addTree(root)
	}
	logging.Info("Watching %d directories under %d roots with fsnotify", watched, len(roots))

	go n.loop()
	return n, nil
}

func (n *NotifySource) Events() <-chan Event { return n.events }
func (n *NotifySource) Errors() <-chan error { return n.errors }

// Close removes every watch and waits for the translation goroutine.
func (n *NotifySource) Close() error {
	n.cancel()
	err := n.fsWatcher.Close()
	<-n.done
	return err
}

// addTree watches dir and every directory below it, skipping excluded ones.
func (n *NotifySource) addTree(dir string) int {
	count := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries that can't be read
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && n.opts.Skip[path] {
			return filepath.SkipDir
		}
		if err := n.fsWatcher.Add(path); err != nil {
			logging.Warn("Failed to watch directory %s: %v", path, err)
			return nil
		}
		count++
		return nil
	})
	return count
}

func (n *NotifySource) loop() {
	defer close(n.done)

	for {
		select {
		case <-n.ctx.Done():
			return

		case event, ok := <-n.fsWatcher.Events:
			if !ok {
				return
			}
			if ev, ok := n.translate(event); ok {
				select {
				case n.events <- ev:
				case <-n.ctx.Done():
					return
				}
			}

		case err, ok := <-n.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case n.errors <- err:
			case <-n.ctx.Done():
				return
			}
		}
	}
}

// translate maps one fsnotify event to an Event. A created directory is
// watched and its existing files are reported as created, since they may
// have been written before the watch was in place.
func (n *NotifySource) translate(event fsnotify.Event) (Event, bool) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Lstat(path)
		if err == nil && info.IsDir() {
			if n.opts.Skip[path] {
				return Event{}, false
			}
			n.addTree(path)
			var files []string
			_ = filesystem.WalkFiles(n.ctx, path, n.opts, func(p string) error {
				files = append(files, p)
				return nil
			})
			if len(files) == 0 {
				return Event{}, false
			}
			return Event{Op: OpCreate, Paths: files}, true
		}
		if !n.included(path) {
			return Event{}, false
		}
		return Event{Op: OpCreate, Paths: []string{path}}, true

	case event.Has(fsnotify.Write):
		if !n.included(path) {
			return Event{}, false
		}
		return Event{Op: OpModify, Paths: []string{path}}, true

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename reports the old name here and the new name as Create.
		return Event{Op: OpRemove, Paths: []string{path}}, true

	default:
		return Event{}, false
	}
}

// included applies the Include filter to create and write events. Removals
// are never filtered so stale records are always purged.
func (n *NotifySource) included(path string) bool {
	return n.opts.Include == nil || n.opts.Include(path)
}
