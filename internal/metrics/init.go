package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(volumes []string) {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"get_record", "query_by_trigrams", "like_query", "aggregate_stats",
		"count_records", "count_postings", "list_records", "entries_in_directory", "directory_size"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "commit_error", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, kind := range []string{"file_access", "batch_commit", "incremental"} {
		IndexerErrors.WithLabelValues(kind)
	}
	for _, status := range []string{"committed", "failed"} {
		IndexerBatchesTotal.WithLabelValues(status)
	}

	for _, ev := range []string{"create", "modify", "remove"} {
		WatcherEventsTotal.WithLabelValues(ev)
	}

	for _, path := range []string{"empty", "short_like", "trigram", "like_fallback"} {
		SearchRequestsTotal.WithLabelValues(path)
		SearchDuration.WithLabelValues(path)
	}

	volumes = append(volumes, "unknown")
	for _, vol := range volumes {
		for _, op := range []string{"lstat", "readdir"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
