package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"file-server/internal/database"
)

func setupTestStore(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func syntheticRecords(n int) []database.IndexRecord {
	recs := make([]database.IndexRecord, n)
	for i := range recs {
		name := fmt.Sprintf("file-%05d.txt", i)
		recs[i] = database.IndexRecord{
			Path:     "/data/" + name,
			Filename: name,
			Size:     uint64(i),
		}
	}
	return recs
}

// recordingStore wraps a real store and records the number of records put
// in each transaction. Transactions listed in failOn (1-based) fail after
// half of their records have been written.
type recordingStore struct {
	database.Store

	mu        sync.Mutex
	begins    int
	failOn    map[int]bool
	committed []int
	failBegin bool
}

func (s *recordingStore) Begin(ctx context.Context) (database.Tx, error) {
	if s.failBegin {
		return nil, errors.New("database is locked")
	}
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.begins++
	n := s.begins
	s.mu.Unlock()
	return &recordingTx{Tx: tx, store: s, fail: s.failOn[n]}, nil
}

type recordingTx struct {
	database.Tx
	store *recordingStore
	fail  bool
	puts  int
}

func (t *recordingTx) PutRecord(ctx context.Context, rec *database.IndexRecord) (int64, error) {
	if t.fail && t.puts == 500 {
		return 0, errors.New("injected write failure")
	}
	t.puts++
	return t.Tx.PutRecord(ctx, rec)
}

func (t *recordingTx) Commit() error {
	if err := t.Tx.Commit(); err != nil {
		return err
	}
	t.store.mu.Lock()
	t.store.committed = append(t.store.committed, t.puts)
	t.store.mu.Unlock()
	return nil
}

func TestBatchWriterCommitsFixedBatches(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 2500-record batch test in short mode")
	}

	db := setupTestStore(t)
	store := &recordingStore{Store: db}
	ctx := context.Background()

	writer := NewBatchWriter(store, BatchSize)
	for _, rec := range syntheticRecords(2500) {
		if err := writer.Add(ctx, rec); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	report, err := writer.Close(ctx)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := []int{1000, 1000, 500}
	if len(store.committed) != len(want) {
		t.Fatalf("committed batches = %v, want %v", store.committed, want)
	}
	for i := range want {
		if store.committed[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i+1, store.committed[i], want[i])
		}
	}
	if report.Batches != 3 || report.Indexed != 2500 || report.Errors != 0 {
		t.Errorf("report = %+v, want 3 batches, 2500 indexed, 0 errors", report)
	}

	count, _ := db.CountRecords(ctx)
	if count != 2500 {
		t.Errorf("CountRecords() = %d, want 2500", count)
	}
}

func TestBatchWriterFailedBatchContinues(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 2500-record batch test in short mode")
	}

	db := setupTestStore(t)
	store := &recordingStore{Store: db, failOn: map[int]bool{2: true}}
	ctx := context.Background()

	recs := syntheticRecords(2500)
	writer := NewBatchWriter(store, BatchSize)
	for _, rec := range recs {
		if err := writer.Add(ctx, rec); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	report, err := writer.Close(ctx)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if report.Errors != 1000 {
		t.Errorf("report.Errors = %d, want 1000", report.Errors)
	}
	if report.Batches != 2 || report.FailedBatches != 1 || report.Indexed != 1500 {
		t.Errorf("report = %+v, want 2 committed, 1 failed, 1500 indexed", report)
	}
	if len(store.committed) != 2 || store.committed[0] != 1000 || store.committed[1] != 500 {
		t.Errorf("committed batches = %v, want [1000 500]", store.committed)
	}

	count, _ := db.CountRecords(ctx)
	if count != 1500 {
		t.Errorf("CountRecords() = %d, want 1500 (failed batch fully rolled back)", count)
	}

	// Nothing from the failed batch survives, not even the half written
	// before the failure.
	for _, rec := range recs[1000:2000] {
		if _, err := db.GetRecord(ctx, rec.Path); !errors.Is(err, database.ErrRecordNotFound) {
			t.Fatalf("GetRecord(%s) error = %v, want ErrRecordNotFound", rec.Path, err)
		}
	}
	if _, err := db.GetRecord(ctx, recs[2499].Path); err != nil {
		t.Errorf("record from batch 3 missing: %v", err)
	}
}

func TestBatchWriterBeginFailureIsStructural(t *testing.T) {
	db := setupTestStore(t)
	store := &recordingStore{Store: db, failBegin: true}

	writer := NewBatchWriter(store, 2)
	ctx := context.Background()

	if err := writer.Add(ctx, syntheticRecords(1)[0]); err != nil {
		t.Fatalf("Add() below batch size error = %v", err)
	}
	err := writer.Add(ctx, syntheticRecords(2)[1])
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Add() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestBatchWriterPostingsMatchRecords(t *testing.T) {
	db := setupTestStore(t)
	ctx := context.Background()

	writer := NewBatchWriter(db, 10)
	rec := database.IndexRecord{Path: "/a/bc", Filename: "bc"}
	if err := writer.Add(ctx, rec); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := writer.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// /a/bc -> "/a/", "a/b", "/bc"; bc -> "bc"
	postings, _ := db.CountPostings(ctx)
	if postings != 4 {
		t.Errorf("CountPostings() = %d, want 4", postings)
	}
}

func TestBatchCommitErrorUnwrap(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := error(&BatchCommitError{Records: 1000, Err: cause})

	if !errors.Is(err, cause) {
		t.Error("BatchCommitError does not unwrap to its cause")
	}
	var bce *BatchCommitError
	if !errors.As(err, &bce) || bce.Records != 1000 {
		t.Errorf("errors.As() = %+v", bce)
	}
}
