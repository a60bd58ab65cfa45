package workers

import (
	"os"
	"runtime"
	"strconv"
)

// IndexWorkersEnv overrides the crawler worker count.
const IndexWorkersEnv = "INDEX_WORKERS"

// Count returns the number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//
// The limit parameter caps the worker count. Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// FromEnv returns the positive integer in the named environment variable,
// capped at limit, or fallback when it is unset or invalid.
func FromEnv(name string, fallback, limit int) int {
	override := os.Getenv(name)
	if override == "" {
		return fallback
	}
	count, err := strconv.Atoi(override)
	if err != nil || count <= 0 {
		return fallback
	}
	if limit > 0 && count > limit {
		return limit
	}
	return count
}

// ForCrawl returns the number of metadata workers for a full crawl.
// INDEX_WORKERS overrides the I/O-bound default.
func ForCrawl(limit int) int {
	return FromEnv(IndexWorkersEnv, ForIO(limit), limit)
}
