package indexer

import (
	"context"
	"errors"
	"time"

	"file-server/internal/database"
	"file-server/internal/logging"
	"file-server/internal/metrics"
	"file-server/internal/trigram"
)

// BatchSize is the number of records committed per crawl transaction.
const BatchSize = 1000

// CrawlReport summarizes one full crawl.
type CrawlReport struct {
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
	Indexed       int64         `json:"indexed"`
	Errors        int64         `json:"errors"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failedBatches"`
}

// BatchWriter buffers crawl records and commits them in fixed-size
// transactions. It is not safe for concurrent use; the crawl funnels every
// record through one goroutine that owns the writer.
type BatchWriter struct {
	store database.Store
	size  int
	buf   []database.IndexRecord

	start         time.Time
	indexed       int64
	errors        int64
	batches       int
	failedBatches int
}

// NewBatchWriter creates a writer committing size records per transaction.
func NewBatchWriter(store database.Store, size int) *BatchWriter {
	if size <= 0 {
		size = BatchSize
	}
	return &BatchWriter{
		store: store,
		size:  size,
		buf:   make([]database.IndexRecord, 0, size),
		start: time.Now(),
	}
}

// Add buffers rec and flushes when the buffer is full. Only structural
// failures (ErrStoreUnavailable) are returned; a rolled-back batch is
// counted and the writer moves on.
func (w *BatchWriter) Add(ctx context.Context, rec database.IndexRecord) error {
	w.buf = append(w.buf, rec)
	if len(w.buf) >= w.size {
		return w.Flush(ctx)
	}
	return nil
}

// CountError adds per-file failures observed upstream of the writer.
func (w *BatchWriter) CountError(n int64) {
	w.errors += n
}

// Flush commits the buffered records, if any.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	defer func() { w.buf = w.buf[:0] }()

	start := time.Now()
	err := w.writeBatch(ctx, w.buf)
	metrics.IndexerBatchDuration.Observe(time.Since(start).Seconds())

	var commitErr *BatchCommitError
	switch {
	case err == nil:
		w.batches++
		w.indexed += int64(len(w.buf))
		metrics.IndexerBatchesTotal.WithLabelValues("committed").Inc()
		metrics.IndexerFilesProcessed.Add(float64(len(w.buf)))
		logging.Debug("Committed batch of %d records (%d total)", len(w.buf), w.indexed)
		return nil
	case errors.As(err, &commitErr):
		w.failedBatches++
		w.errors += int64(commitErr.Records)
		metrics.IndexerBatchesTotal.WithLabelValues("failed").Inc()
		metrics.IndexerErrors.WithLabelValues("batch_commit").Add(float64(commitErr.Records))
		logging.Error("Error inserting batch: %v", err)
		return nil
	default:
		return err
	}
}

// Close flushes the remainder and returns the crawl report.
func (w *BatchWriter) Close(ctx context.Context) (CrawlReport, error) {
	err := w.Flush(ctx)
	return w.Report(), err
}

// Report returns the counters accumulated so far.
func (w *BatchWriter) Report() CrawlReport {
	return CrawlReport{
		StartedAt:     w.start,
		Duration:      time.Since(w.start),
		Indexed:       w.indexed,
		Errors:        w.errors,
		Batches:       w.batches,
		FailedBatches: w.failedBatches,
	}
}

// writeBatch upserts every record with its postings in one transaction.
func (w *BatchWriter) writeBatch(ctx context.Context, batch []database.IndexRecord) error {
	tx, err := w.store.Begin(ctx)
	if err != nil {
		return storeUnavailable("begin batch", err)
	}

	if err := writeRecords(ctx, tx, batch); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Warn("Rollback of failed batch: %v", rbErr)
		}
		return &BatchCommitError{Records: len(batch), Err: err}
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return &BatchCommitError{Records: len(batch), Err: err}
	}
	return nil
}

func writeRecords(ctx context.Context, tx database.Tx, batch []database.IndexRecord) error {
	for i := range batch {
		if err := putWithPostings(ctx, tx, &batch[i]); err != nil {
			return err
		}
	}
	return nil
}

// putWithPostings is the single write primitive shared by the crawl and the
// incremental path.
func putWithPostings(ctx context.Context, tx database.Tx, rec *database.IndexRecord) error {
	id, err := tx.PutRecord(ctx, rec)
	if err != nil {
		return err
	}
	return tx.ReplacePostings(ctx, id, trigram.ForRecord(rec.Path, rec.Filename))
}
