package database

import "context"

// Tx is one write transaction against the index.
type Tx interface {
	// PutRecord inserts the record or updates the row with the same path,
	// returning the record id.
	PutRecord(ctx context.Context, rec *IndexRecord) (int64, error)
	// ReplacePostings deletes every posting of the record and inserts one
	// per trigram.
	ReplacePostings(ctx context.Context, recordID int64, trigrams []string) error
	// DeleteRecord removes the record with the path and all its postings.
	// It reports whether a record existed.
	DeleteRecord(ctx context.Context, path string) (bool, error)
	// DeleteUnder removes every record below the directory dir and returns
	// how many were removed.
	DeleteUnder(ctx context.Context, dir string) (int64, error)
	// ClearPostings removes every posting in the index.
	ClearPostings(ctx context.Context) error
	Commit() error
	Rollback() error
}

// Reader is the read side used by the search engine and stats endpoints.
type Reader interface {
	GetRecord(ctx context.Context, path string) (*IndexRecord, error)
	QueryByTrigrams(ctx context.Context, trigrams []string, field Field, query string, limit int) ([]RankedRecord, error)
	LikeQuery(ctx context.Context, field Field, pattern string, limit int) ([]IndexRecord, error)
	AggregateStats(ctx context.Context) (IndexStats, error)
}

// Store is the full persistent store consumed by the indexer.
type Store interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
	CountRecords(ctx context.Context) (int64, error)
	CountPostings(ctx context.Context) (int64, error)
	// ListRecords returns up to limit records with id greater than afterID
	// in id order.
	ListRecords(ctx context.Context, afterID int64, limit int) ([]IndexRecord, error)
}

var _ Store = (*Database)(nil)
