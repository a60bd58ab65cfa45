package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"file-server/internal/logging"
	"file-server/internal/metrics"
)

// Op is the kind of a filesystem change.
type Op int

const (
	OpCreate Op = iota + 1
	OpModify
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is one change notification covering one or more paths.
type Event struct {
	Op    Op
	Paths []string
}

// Source produces change events. Close releases the subscription; the
// channels are not closed while the source is open.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// Handler applies changes to the index.
type Handler interface {
	UpsertPath(ctx context.Context, path string) (bool, error)
	RemovePath(ctx context.Context, path string) (int64, error)
}

// ErrWatcherChannel wraps errors received from a Source.
var ErrWatcherChannel = errors.New("watcher channel error")

// ErrorBackoff is the pause after a source error before reading resumes.
const ErrorBackoff = 5 * time.Second

// Watcher is the owned handle of a running consumer.
type Watcher struct {
	source  Source
	handler Handler
	backoff time.Duration

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Start begins consuming source and returns the handle that stops it.
func Start(source Source, handler Handler) *Watcher {
	return startWithBackoff(source, handler, ErrorBackoff)
}

func startWithBackoff(source Source, handler Handler, backoff time.Duration) *Watcher {
	w := &Watcher{
		source:  source,
		handler: handler,
		backoff: backoff,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	metrics.WatcherRunning.Set(1)
	go w.run()
	return w
}

// Stop ends the consumer, waits for the event in flight to finish and
// closes the source. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		<-w.done
		if err := w.source.Close(); err != nil {
			logging.Warn("Error closing watcher source: %v", err)
		}
		metrics.WatcherRunning.Set(0)
		logging.Info("File watcher stopped")
	})
}

// Done is closed when the consumer goroutine has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) run() {
	defer close(w.done)

	events := w.source.Events()
	errs := w.source.Errors()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-events:
			if !ok {
				logging.Error("%v: event channel closed", ErrWatcherChannel)
				metrics.WatcherErrors.Inc()
				events = nil
				continue
			}
			w.handle(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.Error("%v", fmt.Errorf("%w: %w", ErrWatcherChannel, err))
			metrics.WatcherErrors.Inc()
			if !w.pause() {
				return
			}
		}
	}
}

// pause sleeps for the backoff and reports false if Stop interrupted it.
func (w *Watcher) pause() bool {
	timer := time.NewTimer(w.backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-w.stop:
		return false
	}
}

func (w *Watcher) handle(ev Event) {
	ctx := context.Background()
	metrics.WatcherEventsTotal.WithLabelValues(ev.Op.String()).Inc()

	for _, path := range ev.Paths {
		switch ev.Op {
		case OpCreate, OpModify:
			indexed, err := w.handler.UpsertPath(ctx, path)
			if err != nil {
				logging.Error("Error indexing %s: %v", path, err)
				continue
			}
			if indexed {
				logging.Debug("Watcher indexed %s", path)
			}
		case OpRemove:
			removed, err := w.handler.RemovePath(ctx, path)
			if err != nil {
				logging.Error("Error removing %s from index: %v", path, err)
				continue
			}
			if removed > 0 {
				logging.Debug("Watcher removed %s", path)
			}
		}
	}
}
