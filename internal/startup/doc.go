// Package startup loads configuration and writes the sectioned startup and
// shutdown log.
//
// # Configuration
//
// [LoadEnvFiles] reads optional .env.local and .env files with godotenv;
// variables already present in the environment are never overridden.
// [LoadConfig] then reads:
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - DATABASE_DIR: Directory holding index.db (default: ./data)
//   - ROOT_PATHS: Comma separated crawl roots (default: every mount point)
//   - INDEXING_ENABLED: Crawl on first start (default: true)
//   - FILE_WATCHER_ENABLED: Start the watcher at boot (default: true)
//   - WATCH_MODE: poll or notify (default: poll)
//   - WATCH_POLL_INTERVAL: Poll interval as Go duration (default: 2s)
//   - FILTER_MODE_WHITELIST: Treat FILTER_PATTERNS as an allow list (default: false)
//   - FILTER_PATTERNS: Comma separated doublestar globs
//   - EXCLUDE_HIDDEN_FILES: Skip dot files (default: true)
//   - FILTER_CONFIG: YAML policy file overriding the three filter variables
//   - INDEX_WORKERS: Crawler metadata workers
//   - LOG_LEVEL, DEBUG: Logging level
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Invalid values log a warning and fall back to the default. Only an
// unusable database directory or an unreadable FILTER_CONFIG fail startup.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
