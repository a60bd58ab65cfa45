package watcher

import (
	"context"
	"fmt"
	"time"

	"file-server/internal/filesystem"
	"file-server/internal/logging"
	"file-server/internal/metrics"
)

// DefaultPollInterval is the delay between two snapshots in poll mode.
const DefaultPollInterval = 2 * time.Second

// maxPathsPerEvent bounds the size of one Event so a large diff is applied
// in several steps.
const maxPathsPerEvent = 256

// fileState is what a snapshot remembers per file. Contents are never
// hashed; size and mtime changes are the modify signal.
type fileState struct {
	size  int64
	mtime int64
}

// PollSource detects changes by diffing periodic snapshots of the roots.
type PollSource struct {
	roots    []string
	interval time.Duration
	opts     filesystem.WalkOptions

	events   chan Event
	errors   chan error
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	baseline chan struct{}
}

// NewPollSource starts polling roots every interval. The first snapshot is
// the baseline and produces no events.
func NewPollSource(roots []string, interval time.Duration, opts filesystem.WalkOptions) *PollSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &PollSource{
		roots:    roots,
		interval: interval,
		opts:     opts,
		events:   make(chan Event, 64),
		errors:   make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		baseline: make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *PollSource) Events() <-chan Event { return p.events }
func (p *PollSource) Errors() <-chan error { return p.errors }

// Close stops polling and waits for the poll goroutine to exit.
func (p *PollSource) Close() error {
	p.cancel()
	<-p.done
	return nil
}

func (p *PollSource) loop() {
	defer close(p.done)

	logging.Info("Starting poll watcher on %d roots (interval: %v)", len(p.roots), p.interval)

	prev, err := p.snapshot()
	close(p.baseline)
	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		p.report(err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}

		next, err := p.snapshot()
		if p.ctx.Err() != nil {
			return
		}
		if err != nil {
			// Keep the previous baseline: a root that vanished for one poll
			// must not look like every file under it was removed.
			p.report(err)
			continue
		}

		if !p.emitDiff(prev, next) {
			return
		}
		prev = next
	}
}

func (p *PollSource) report(err error) {
	select {
	case p.errors <- err:
	default:
		logging.Debug("Dropping poll error, previous one not consumed: %v", err)
	}
}

// snapshot records size and mtime of every regular file under the roots
// that passes the Include filter. Rejected files are never held in memory.
func (p *PollSource) snapshot() (map[string]fileState, error) {
	start := time.Now()
	defer func() { metrics.WatcherPollDuration.Observe(time.Since(start).Seconds()) }()

	state := make(map[string]fileState)
	for _, root := range p.roots {
		if _, err := filesystem.LstatWithRetry(root, p.opts.Retry); err != nil {
			return nil, fmt.Errorf("poll root %s unavailable: %w", root, err)
		}

		err := filesystem.WalkFiles(p.ctx, root, p.opts, func(path string) error {
			info, err := filesystem.LstatWithRetry(path, p.opts.Retry)
			if err != nil {
				// Removed between readdir and lstat; the next poll settles it.
				return nil
			}
			state[path] = fileState{size: info.Size(), mtime: info.ModTime().UnixNano()}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}

// emitDiff sends create, modify and remove events for the differences
// between two snapshots. It returns false if the source was closed.
func (p *PollSource) emitDiff(prev, next map[string]fileState) bool {
	var created, modified, removed []string

	for path, st := range next {
		old, ok := prev[path]
		switch {
		case !ok:
			created = append(created, path)
		case old != st:
			modified = append(modified, path)
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			removed = append(removed, path)
		}
	}

	return p.send(OpRemove, removed) && p.send(OpCreate, created) && p.send(OpModify, modified)
}

func (p *PollSource) send(op Op, paths []string) bool {
	for len(paths) > 0 {
		n := min(len(paths), maxPathsPerEvent)
		select {
		case p.events <- Event{Op: op, Paths: paths[:n]}:
		case <-p.ctx.Done():
			return false
		}
		paths = paths[n:]
	}
	return true
}
