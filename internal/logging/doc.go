// Package logging provides the leveled logger used by the file server and
// its indexing engine.
//
// Levels, lowest to highest:
//   - DEBUG: per-event and per-batch tracing
//   - INFO: crawl progress, watcher lifecycle, startup sections
//   - WARN: absorbed per-file errors (unreadable metadata, skipped events)
//   - ERROR: failed batches, store errors
//   - FATAL: startup failures that terminate the process
//
// The level comes from DEBUG (any truthy value selects debug) or LOG_LEVEL.
// Tests may override it with SetLevel.
package logging
