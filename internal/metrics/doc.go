// Package metrics provides Prometheus instrumentation for the file server.
//
// All metrics are prefixed with "file_server_" and registered on the default
// registry through promauto, so importing the package is enough to expose
// them on the metrics listener.
//
// # Metric Categories
//
//   - HTTP: request counts, latency and in-flight requests per route template
//   - Database: query counts and latency per operation, transaction latency,
//     open connections and SQLite file sizes
//   - Indexer: crawl runs, batch outcomes, per-kind error counters and the
//     current record and posting counts
//   - Watcher: handled events by type, source errors and poll snapshot time
//   - Search: requests and latency by the query path that produced the
//     result (empty, short_like, trigram, like_fallback)
//   - Filesystem: stale-handle retries per mount point
//   - Memory: heap usage against GOMEMLIMIT and crawl pauses under pressure
//
// Collector refreshes the gauges that are cheaper to sample than to track
// incrementally. InitializeMetrics pre-populates label sets so dashboards
// see zero values before the first event.
package metrics
