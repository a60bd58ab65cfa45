package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"file-server/internal/database"
	"file-server/internal/filesystem"
	"file-server/internal/filter"
	"file-server/internal/logging"
	"file-server/internal/metrics"
	"file-server/internal/workers"
)

// CrawlerConfig configures the parallel crawler
type CrawlerConfig struct {
	// NumWorkers is the number of goroutines reading file metadata
	NumWorkers int
	// ChannelBuffer is the size of the path channel between walkers and workers
	ChannelBuffer int
	// Exclude lists directories never descended into (pseudo filesystems)
	Exclude []string
	Retry   filesystem.RetryConfig
	// Throttle, when set, is consulted before each metadata read so a
	// crawl pauses while memory is critical.
	Throttle Throttle
}

// Throttle blocks while work should be paused. memory.Monitor implements it.
type Throttle interface {
	WaitIfPaused() bool
}

// DefaultCrawlerConfig returns defaults sized to the available CPUs.
// INDEX_WORKERS overrides the worker count.
func DefaultCrawlerConfig() CrawlerConfig {
	return CrawlerConfig{
		NumWorkers:    workers.ForCrawl(16),
		ChannelBuffer: 1000,
		Retry:         filesystem.DefaultRetryConfig(),
	}
}

// Crawler walks mount points in parallel: one walker goroutine per root
// feeds eligible paths to a pool of metadata workers.
type Crawler struct {
	config CrawlerConfig
	policy filter.Policy

	filesProcessed atomic.Int64
	errorsCount    atomic.Int64
}

// NewCrawler creates a crawler applying policy to every file.
func NewCrawler(policy filter.Policy, config CrawlerConfig) *Crawler {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	if config.ChannelBuffer < 0 {
		config.ChannelBuffer = 0
	}
	return &Crawler{config: config, policy: policy}
}

// Crawl sends a record for every eligible regular file under roots to out.
// It returns once every walker and worker has finished; out is left open.
// Unreadable files are logged, counted and skipped.
func (c *Crawler) Crawl(ctx context.Context, roots []string, out chan<- database.IndexRecord) error {
	logging.Info("Starting parallel crawl of %d mount points with %d workers", len(roots), c.config.NumWorkers)
	startTime := time.Now()

	paths := make(chan string, c.config.ChannelBuffer)

	var pool errgroup.Group
	for i := 0; i < c.config.NumWorkers; i++ {
		pool.Go(func() error {
			return c.worker(ctx, paths, out)
		})
	}

	var walkers errgroup.Group
	for _, root := range roots {
		opts := filesystem.WalkOptions{
			Retry:   c.config.Retry,
			Skip:    c.skipSet(root, roots),
			Include: c.eligible,
		}
		walkers.Go(func() error {
			logging.Info("Indexing mount point: %s", root)
			return filesystem.WalkFiles(ctx, root, opts, func(path string) error {
				select {
				case paths <- path:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		})
	}

	walkErr := walkers.Wait()
	close(paths)
	poolErr := pool.Wait()

	logging.Info("Parallel crawl complete: %d files in %v (errors: %d)",
		c.filesProcessed.Load(), time.Since(startTime), c.errorsCount.Load())

	return errors.Join(walkErr, poolErr)
}

// FilesProcessed returns the number of records produced so far.
func (c *Crawler) FilesProcessed() int64 {
	return c.filesProcessed.Load()
}

// Errors returns the number of files skipped because their metadata could
// not be read.
func (c *Crawler) Errors() int64 {
	return c.errorsCount.Load()
}

func (c *Crawler) worker(ctx context.Context, paths <-chan string, out chan<- database.IndexRecord) error {
	for path := range paths {
		if c.config.Throttle != nil {
			c.config.Throttle.WaitIfPaused()
		}
		rec, err := BuildRecord(path, c.config.Retry)
		if errors.Is(err, errNotRegular) {
			continue
		}
		if err != nil {
			c.errorsCount.Add(1)
			metrics.IndexerErrors.WithLabelValues("file_access").Inc()
			logging.Warn("Error processing file %s: %v", path, err)
			continue
		}

		select {
		case out <- rec:
			c.filesProcessed.Add(1)
		case <-ctx.Done():
			// Drain so walkers blocked on send can observe cancellation.
			for range paths {
			}
			return ctx.Err()
		}
	}
	return nil
}

func (c *Crawler) eligible(path string) bool {
	return eligible(c.policy, c.config.Exclude, path)
}

// eligible applies policy and drops files inside excluded directories the
// walk could not prune, such as an exclusion reached through a differently
// spelled root.
func eligible(policy filter.Policy, exclude []string, path string) bool {
	for _, dir := range exclude {
		if filesystem.IsWithin(path, dir) {
			return false
		}
	}
	return policy.Eligible(filter.NormalizePath(path))
}

// skipSet prunes every other root nested under root, plus excluded paths,
// so each directory is walked by exactly one walker.
func (c *Crawler) skipSet(root string, roots []string) map[string]bool {
	skip := make(map[string]bool, len(roots)+len(c.config.Exclude))
	root = filepath.Clean(root)
	for _, other := range roots {
		other = filepath.Clean(other)
		if other != root {
			skip[other] = true
		}
	}
	for _, ex := range c.config.Exclude {
		skip[filepath.Clean(ex)] = true
	}
	return skip
}
