package indexer

import (
	"errors"
	"fmt"

	"file-server/internal/database"
)

var (
	// ErrFileAccess marks a file whose metadata could not be read. It is
	// absorbed per file: logged, counted and skipped.
	ErrFileAccess = errors.New("file access error")

	// ErrStoreUnavailable marks a failure to reach the store or open a
	// transaction. It is returned to the caller of the operation and is the
	// same sentinel the search engine wraps.
	ErrStoreUnavailable = database.ErrUnavailable

	// ErrReindexInProgress is returned when a full reindex or trigram rebuild
	// is requested while another one is running.
	ErrReindexInProgress = errors.New("reindex already in progress")
)

// BatchCommitError reports a crawl batch whose transaction was rolled back.
type BatchCommitError struct {
	Records int
	Err     error
}

func (e *BatchCommitError) Error() string {
	return fmt.Sprintf("batch of %d records rolled back: %v", e.Records, e.Err)
}

func (e *BatchCommitError) Unwrap() error {
	return e.Err
}

func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
