package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"file-server/internal/database"
	"file-server/internal/filesystem"
	"file-server/internal/filter"
	"file-server/internal/logging"
	"file-server/internal/metrics"
	"file-server/internal/trigram"
)

// Indexer owns every mutation of the search index: full crawls, trigram
// rebuilds and the incremental upserts and removals driven by the watcher.
type Indexer struct {
	store  database.Store
	roots  []string
	policy filter.Policy

	crawlConfig CrawlerConfig

	indexMu       sync.Mutex
	isIndexing    bool
	lastIndexTime time.Time
	lastReport    *CrawlReport
	lastError     error
	initialDone   bool
	startTime     time.Time

	filesIndexed atomic.Int64
	progress     atomic.Value

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// IndexProgress tracks the running crawl
type IndexProgress struct {
	FilesIndexed int64     `json:"filesIndexed"`
	IsIndexing   bool      `json:"isIndexing"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
}

// New creates an Indexer over store for the given mount points.
func New(store database.Store, roots []string, policy filter.Policy) *Indexer {
	ctx, cancel := context.WithCancel(context.Background())
	idx := &Indexer{
		store:       store,
		roots:       roots,
		policy:      policy,
		crawlConfig: DefaultCrawlerConfig(),
		startTime:   time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
	idx.progress.Store(IndexProgress{})
	return idx
}

// SetCrawlerConfig sets the parallel crawler configuration.
func (idx *Indexer) SetCrawlerConfig(config CrawlerConfig) {
	idx.crawlConfig = config
}

// Policy returns the filter policy applied to crawled and watched paths.
func (idx *Indexer) Policy() filter.Policy {
	return idx.policy
}

// Eligible reports whether path passes the filter policy and lies outside
// every excluded directory. Excluded directories hold virtual filesystems and
// the index database itself.
func (idx *Indexer) Eligible(path string) bool {
	return eligible(idx.policy, idx.crawlConfig.Exclude, path)
}

// Exclusions returns the directories pruned from crawls.
func (idx *Indexer) Exclusions() []string {
	return idx.crawlConfig.Exclude
}

// Roots returns the mount points the indexer crawls.
func (idx *Indexer) Roots() []string {
	return idx.roots
}

// MarkReady records that the index was already populated when the process
// started, so readiness does not wait for a crawl.
func (idx *Indexer) MarkReady() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	idx.initialDone = true
}

// Close cancels any background crawl and waits for it to stop.
func (idx *Indexer) Close() {
	idx.cancel()
	idx.wg.Wait()
}

// tryStartIndexing claims the single crawl slot.
func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing(report *CrawlReport, err error) {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	idx.isIndexing = false
	idx.lastError = err
	if report != nil {
		idx.lastReport = report
		idx.lastIndexTime = time.Now()
		idx.initialDone = true
	}
}

// TriggerFullReindex starts a full crawl in the background. It returns
// ErrReindexInProgress when a crawl or rebuild is already running.
func (idx *Indexer) TriggerFullReindex() error {
	if !idx.tryStartIndexing() {
		return ErrReindexInProgress
	}

	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		if _, err := idx.reindex(idx.ctx); err != nil {
			logging.Error("Full reindex failed: %v", err)
		}
	}()
	return nil
}

// Reindex runs a full crawl and waits for it to finish.
func (idx *Indexer) Reindex(ctx context.Context) (CrawlReport, error) {
	if !idx.tryStartIndexing() {
		return CrawlReport{}, ErrReindexInProgress
	}
	return idx.reindex(ctx)
}

// reindex runs the crawl; the caller holds the crawl slot.
func (idx *Indexer) reindex(ctx context.Context) (report CrawlReport, err error) {
	logging.Info("Starting file indexing...")
	metrics.IndexerIsRunning.Set(1)
	metrics.IndexerRunsTotal.Inc()
	idx.filesIndexed.Store(0)
	idx.progress.Store(IndexProgress{IsIndexing: true, StartedAt: time.Now()})

	defer func() {
		metrics.IndexerIsRunning.Set(0)
		idx.progress.Store(IndexProgress{FilesIndexed: idx.filesIndexed.Load()})
		if err != nil {
			idx.finishIndexing(nil, err)
			return
		}
		idx.finishIndexing(&report, nil)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan database.IndexRecord, idx.crawlConfig.ChannelBuffer)
	crawler := NewCrawler(idx.policy, idx.crawlConfig)

	crawlDone := make(chan error, 1)
	go func() {
		defer close(records)
		crawlDone <- crawler.Crawl(ctx, idx.roots, records)
	}()

	writer := NewBatchWriter(idx.store, BatchSize)
	var writeErr error
	for rec := range records {
		if writeErr != nil {
			continue
		}
		if err := writer.Add(ctx, rec); err != nil {
			writeErr = err
			cancel()
			continue
		}
		idx.filesIndexed.Store(writer.Report().Indexed)
		idx.progress.Store(IndexProgress{
			FilesIndexed: idx.filesIndexed.Load(),
			IsIndexing:   true,
			StartedAt:    writer.Report().StartedAt,
		})
	}
	crawlErr := <-crawlDone

	if writeErr != nil {
		return writer.Report(), writeErr
	}
	if crawlErr != nil {
		return writer.Report(), fmt.Errorf("crawl interrupted: %w", crawlErr)
	}

	writer.CountError(crawler.Errors())
	report, err = writer.Close(ctx)
	if err != nil {
		return report, err
	}

	idx.filesIndexed.Store(report.Indexed)
	metrics.IndexerLastRunDuration.Set(report.Duration.Seconds())
	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))

	elapsed := report.Duration
	logging.Info("Indexing completed in %dh %dm %ds. Indexed %d files, %d errors.",
		int(elapsed.Hours()), int(elapsed.Minutes())%60, int(elapsed.Seconds())%60,
		report.Indexed, report.Errors)

	return report, nil
}

// UpsertPath indexes a single file from the watcher. Ineligible paths,
// non-regular files and unchanged files are skipped and reported as not
// indexed.
func (idx *Indexer) UpsertPath(ctx context.Context, path string) (bool, error) {
	normalized := filter.NormalizePath(path)
	if !idx.Eligible(path) {
		return false, nil
	}

	// Events for files whose metadata still matches the stored record are no-ops.
	if existing, err := idx.store.GetRecord(ctx, normalized); err == nil && !IsModified(*existing) {
		return false, nil
	}

	rec, err := BuildRecord(path, idx.crawlConfig.Retry)
	if errors.Is(err, errNotRegular) {
		return false, nil
	}
	if err != nil {
		metrics.IndexerErrors.WithLabelValues("file_access").Inc()
		return false, err
	}

	tx, err := idx.store.Begin(ctx)
	if err != nil {
		return false, storeUnavailable("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := putWithPostings(ctx, tx, &rec); err != nil {
		metrics.IndexerErrors.WithLabelValues("incremental").Inc()
		return false, fmt.Errorf("failed to upsert %s: %w", rec.Path, err)
	}
	if err := tx.Commit(); err != nil {
		metrics.IndexerErrors.WithLabelValues("incremental").Inc()
		return false, fmt.Errorf("failed to commit upsert of %s: %w", rec.Path, err)
	}

	logging.Debug("Indexed %s", rec.Path)
	return true, nil
}

// RemovePath deletes the record at path, or every record under it when path
// was a directory. The filter is not consulted: a removed file is purged even
// if it would now be excluded.
func (idx *Indexer) RemovePath(ctx context.Context, path string) (int64, error) {
	normalized := filter.NormalizePath(path)

	tx, err := idx.store.Begin(ctx)
	if err != nil {
		return 0, storeUnavailable("begin remove", err)
	}
	defer func() { _ = tx.Rollback() }()

	existed, err := tx.DeleteRecord(ctx, normalized)
	if err != nil {
		metrics.IndexerErrors.WithLabelValues("incremental").Inc()
		return 0, err
	}

	removed := int64(0)
	if existed {
		removed = 1
	} else {
		removed, err = tx.DeleteUnder(ctx, normalized)
		if err != nil {
			metrics.IndexerErrors.WithLabelValues("incremental").Inc()
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.IndexerErrors.WithLabelValues("incremental").Inc()
		return 0, fmt.Errorf("failed to commit removal of %s: %w", normalized, err)
	}

	if removed > 0 {
		logging.Debug("Removed %d records at %s", removed, normalized)
	}
	return removed, nil
}

// Stats returns store-side aggregates over every record.
func (idx *Indexer) Stats(ctx context.Context) (database.IndexStats, error) {
	stats, err := idx.store.AggregateStats(ctx)
	if err != nil {
		return database.IndexStats{}, storeUnavailable("aggregate stats", err)
	}
	return stats, nil
}

// GetStats implements metrics.StatsProvider.
func (idx *Indexer) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(idx.ctx, 5*time.Second)
	defer cancel()

	var stats metrics.Stats
	var err error
	if stats.Records, err = idx.store.CountRecords(ctx); err != nil {
		logging.Warn("Failed to count records: %v", err)
	}
	if stats.Postings, err = idx.store.CountPostings(ctx); err != nil {
		logging.Warn("Failed to count postings: %v", err)
	}
	return stats
}

// RebuildTrigramIndex deletes every posting and regenerates them from the
// stored records, BatchSize records per transaction. It returns the number
// of records processed.
func (idx *Indexer) RebuildTrigramIndex(ctx context.Context) (int64, error) {
	if !idx.tryStartIndexing() {
		return 0, ErrReindexInProgress
	}
	defer func() {
		idx.indexMu.Lock()
		idx.isIndexing = false
		idx.indexMu.Unlock()
	}()

	start := time.Now()
	logging.Info("Rebuilding trigram index...")

	tx, err := idx.store.Begin(ctx)
	if err != nil {
		return 0, storeUnavailable("begin clear postings", err)
	}
	if err := tx.ClearPostings(ctx); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleared postings: %w", err)
	}

	var processed int64
	var afterID int64
	for {
		page, err := idx.store.ListRecords(ctx, afterID, BatchSize)
		if err != nil {
			return processed, storeUnavailable("list records", err)
		}
		if len(page) == 0 {
			break
		}

		if err := idx.rebuildPage(ctx, page); err != nil {
			return processed, err
		}
		processed += int64(len(page))
		afterID = page[len(page)-1].ID
		logging.Debug("Rebuilt postings for %d records", processed)
	}

	duration := time.Since(start)
	metrics.TrigramRebuildDuration.Set(duration.Seconds())
	logging.Info("Trigram index rebuilt for %d records in %v", processed, duration)
	return processed, nil
}

func (idx *Indexer) rebuildPage(ctx context.Context, page []database.IndexRecord) error {
	tx, err := idx.store.Begin(ctx)
	if err != nil {
		return storeUnavailable("begin rebuild batch", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range page {
		if err := tx.ReplacePostings(ctx, rec.ID, trigram.ForRecord(rec.Path, rec.Filename)); err != nil {
			return fmt.Errorf("failed to rebuild postings for %s: %w", rec.Path, err)
		}
	}
	return tx.Commit()
}

// EnsureTrigramIndex rebuilds the postings when records exist but no
// postings do, which happens after a schema migration or a lost table.
func (idx *Indexer) EnsureTrigramIndex(ctx context.Context) (bool, error) {
	postings, err := idx.store.CountPostings(ctx)
	if err != nil {
		return false, storeUnavailable("count postings", err)
	}
	if postings > 0 {
		return false, nil
	}

	records, err := idx.store.CountRecords(ctx)
	if err != nil {
		return false, storeUnavailable("count records", err)
	}
	if records == 0 {
		return false, nil
	}

	logging.Warn("Trigram index is empty but %d records exist, rebuilding", records)
	if _, err := idx.RebuildTrigramIndex(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// IsReady returns true once the index has been populated at least once.
func (idx *Indexer) IsReady() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialDone
}

// getProgress safely retrieves the current IndexProgress.
func (idx *Indexer) getProgress() IndexProgress {
	if progress, ok := idx.progress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready         bool           `json:"ready"`
	Indexing      bool           `json:"indexing"`
	StartTime     time.Time      `json:"startTime"`
	Uptime        string         `json:"uptime"`
	LastIndexed   time.Time      `json:"lastIndexed,omitempty"`
	LastError     string         `json:"lastError,omitempty"`
	LastReport    *CrawlReport   `json:"lastReport,omitempty"`
	FilesIndexed  int64          `json:"filesIndexed"`
	IndexProgress *IndexProgress `json:"indexProgress,omitempty"`
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Ready:        idx.initialDone,
		Indexing:     idx.isIndexing,
		StartTime:    idx.startTime,
		Uptime:       time.Since(idx.startTime).String(),
		LastIndexed:  idx.lastIndexTime,
		LastReport:   idx.lastReport,
		FilesIndexed: idx.filesIndexed.Load(),
	}

	if idx.isIndexing {
		progress := idx.getProgress()
		status.IndexProgress = &progress
	}
	if idx.lastError != nil {
		status.LastError = idx.lastError.Error()
	}

	return status
}

// StatRoots reports which configured roots are currently reachable.
func (idx *Indexer) StatRoots() map[string]bool {
	reachable := make(map[string]bool, len(idx.roots))
	for _, root := range idx.roots {
		_, err := filesystem.LstatWithRetry(root, idx.crawlConfig.Retry)
		reachable[root] = err == nil
	}
	return reachable
}
