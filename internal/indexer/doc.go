// Package indexer maintains the trigram search index over every file on the
// configured mount points.
//
// Two producers feed the same write primitive (upsert a record, then replace
// its postings inside one transaction):
//   - Full crawl: one walker goroutine per mount point feeds a pool of
//     metadata workers; a single BatchWriter commits their records 1000 per
//     transaction. A failed batch is rolled back, counted and skipped.
//   - Incremental: the watcher calls UpsertPath and RemovePath one event at
//     a time.
//
// Per-file problems (ErrFileAccess) are logged and counted and never stop a
// crawl. Failures to reach the store (ErrStoreUnavailable) are returned to
// the caller. Only one crawl or trigram rebuild runs at a time; a second
// request gets ErrReindexInProgress.
package indexer
