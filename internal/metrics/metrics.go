package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_server_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_server_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_server_db_transaction_duration_seconds",
			Help:    "Time from BEGIN to COMMIT or ROLLBACK in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"}, // "commit", "commit_error", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_server_db_rows_affected",
			Help:    "Rows affected per write statement",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "file_server_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_server_indexer_runs_total",
			Help: "Total number of full crawls",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_indexer_last_run_timestamp",
			Help: "Unix timestamp of the last completed crawl",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_indexer_last_run_duration_seconds",
			Help: "Duration of the last crawl in seconds",
		},
	)

	IndexerFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_server_indexer_files_processed_total",
			Help: "Total number of files committed by the crawler",
		},
	)

	IndexerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_indexer_errors_total",
			Help: "Total number of indexer errors by kind",
		},
		[]string{"kind"}, // "file_access", "batch_commit", "incremental"
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_indexer_running",
			Help: "Whether a crawl is currently running (1 = running, 0 = idle)",
		},
	)

	IndexerBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_indexer_batches_total",
			Help: "Total number of crawl batches by outcome",
		},
		[]string{"status"}, // "committed", "failed"
	)

	IndexerBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "file_server_indexer_batch_duration_seconds",
			Help:    "Time to write and commit one crawl batch",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	IndexerRecordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_indexer_records",
			Help: "Number of file records in the index",
		},
	)

	IndexerPostingsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_indexer_postings",
			Help: "Number of trigram postings in the index",
		},
	)

	TrigramRebuildDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_trigram_rebuild_duration_seconds",
			Help: "Duration of the last trigram index rebuild in seconds",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_watcher_events_total",
			Help: "Total number of filesystem change events handled",
		},
		[]string{"event_type"}, // "create", "modify", "remove"
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_server_watcher_errors_total",
			Help: "Total number of watcher source errors",
		},
	)

	WatcherRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_watcher_running",
			Help: "Whether the filesystem watcher is running (1 = running, 0 = stopped)",
		},
	)

	WatcherPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "file_server_watcher_poll_duration_seconds",
			Help:    "Time to snapshot the watched roots in poll mode",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
)

// Search metrics
var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_search_requests_total",
			Help: "Total number of searches by the path that produced the result",
		},
		[]string{"path"}, // "empty", "short_like", "trigram", "like_fallback"
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_server_search_duration_seconds",
			Help:    "Search duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"path"},
	)

	SearchResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "file_server_search_results_returned",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_server_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations by mount and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by mount and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_filesystem_retry_attempts_total",
			Help: "Retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_filesystem_retry_failures_total",
			Help: "Operations that still failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_server_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "file_server_filesystem_retry_duration_seconds",
			Help:    "Total time spent in a retried filesystem operation",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_memory_paused",
			Help: "Whether crawling is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "file_server_memory_gc_pauses_total",
			Help: "Times crawling was paused for memory pressure",
		},
	)

	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "file_server_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "file_server_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
