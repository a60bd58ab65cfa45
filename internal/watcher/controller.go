package watcher

import (
	"errors"
	"sync"

	"file-server/internal/logging"
)

var (
	ErrAlreadyRunning = errors.New("file watcher already running")
	ErrNotRunning     = errors.New("file watcher not running")
)

// SourceFactory opens a new Source for each start.
type SourceFactory func() (Source, error)

// Controller holds at most one Watcher handle on behalf of the HTTP layer.
type Controller struct {
	mu        sync.Mutex
	newSource SourceFactory
	handler   Handler
	current   *Watcher
}

// NewController creates a stopped controller.
func NewController(newSource SourceFactory, handler Handler) *Controller {
	return &Controller{newSource: newSource, handler: handler}
}

// Start opens a source and starts a watcher on it.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return ErrAlreadyRunning
	}

	source, err := c.newSource()
	if err != nil {
		return err
	}
	c.current = Start(source, c.handler)
	logging.Info("File watcher started")
	return nil
}

// Stop stops the running watcher. The lock is held until the consumer has
// exited, so a concurrent Start cannot run a second consumer alongside it.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ErrNotRunning
	}
	c.current.Stop()
	c.current = nil
	return nil
}

// Running reports whether a watcher is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}
