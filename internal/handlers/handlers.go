package handlers

import (
	"context"

	"file-server/internal/database"
	"file-server/internal/indexer"
)

// IndexService is the indexer surface used by the HTTP layer.
type IndexService interface {
	Stats(ctx context.Context) (database.IndexStats, error)
	TriggerFullReindex() error
	RebuildTrigramIndex(ctx context.Context) (int64, error)
	IsReady() bool
	GetHealthStatus() indexer.HealthStatus
	StatRoots() map[string]bool
}

// Searcher answers search queries.
type Searcher interface {
	Search(ctx context.Context, query string, filenameOnly bool) ([]database.IndexRecord, error)
}

// DirectoryReader serves directory listings and sizes from the index.
type DirectoryReader interface {
	EntriesInDirectory(ctx context.Context, dir string) ([]database.IndexRecord, error)
	DirectorySize(ctx context.Context, dir string) (uint64, error)
	Ping(ctx context.Context) error
}

// WatcherControl starts and stops the filesystem watcher.
type WatcherControl interface {
	Start() error
	Stop() error
	Running() bool
}

// Handlers holds the dependencies of every HTTP handler.
type Handlers struct {
	indexer  IndexService
	searcher Searcher
	store    DirectoryReader
	watcher  WatcherControl
}

// New creates the HTTP handlers.
func New(idx IndexService, searcher Searcher, store DirectoryReader, watcher WatcherControl) *Handlers {
	return &Handlers{
		indexer:  idx,
		searcher: searcher,
		store:    store,
		watcher:  watcher,
	}
}
