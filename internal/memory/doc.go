// Package memory keeps the indexer within its container memory budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from the container limit, since Go
// does not read the cgroup memory limit the way it reads the CPU quota:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set
//   - MEMORY_LIMIT: container limit in bytes, typically from the Kubernetes
//     Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap (default 0.85)
//
// [Monitor] samples heap allocation against that limit. Crawler workers call
// [Monitor.WaitIfPaused] before each metadata read, so a crawl over a very
// large tree stalls instead of getting the process OOM-killed. Crawling
// pauses at CriticalWaterMark and resumes once usage drops below
// HighWaterMark.
package memory
