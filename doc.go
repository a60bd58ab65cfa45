// Package main provides the entry point for the file server.
//
// The file server keeps a SQLite index of every regular file under its
// crawl roots and answers substring searches over paths and filenames in
// milliseconds using trigram postings.
//
// # Application Lifecycle
//
//  1. Environment: .env.local and .env are loaded without overriding
//     variables already set
//  2. Memory Configuration: sets GOMEMLIMIT from GOMEMLIMIT or MEMORY_LIMIT
//  3. Configuration Loading: reads environment variables and the optional
//     filter policy file
//  4. Mount Discovery: configured ROOT_PATHS, or every physical mount point;
//     virtual filesystems such as /proc are excluded from crawling
//  5. Database Initialization: opens the index in WAL mode, creating the
//     schema on first run
//  6. Trigram Check: regenerates postings when the table is missing
//  7. Initial Crawl: a new database triggers a full background crawl
//  8. Watcher: keeps the index in sync with create, modify and remove events
//  9. HTTP Server Setup: routes, metrics, compression and access logging
//  10. Graceful Shutdown: SIGINT/SIGTERM stops every component in order
//
// # Environment Variables
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: metrics server port (default: 9090)
//   - METRICS_ENABLED: enable the metrics server (default: true)
//   - DATABASE_DIR: directory holding index.db (default: ./data)
//   - ROOT_PATHS: comma-separated crawl roots (default: all mount points)
//   - INDEXING_ENABLED: crawl on first start (default: true)
//   - FILE_WATCHER_ENABLED: start the watcher at boot (default: true)
//   - WATCH_MODE: poll or notify (default: poll)
//   - WATCH_POLL_INTERVAL: snapshot interval in poll mode (default: 2s)
//   - FILTER_CONFIG: YAML filter policy file
//   - EXCLUDE_HIDDEN_FILES: skip dot files and directories (default: true)
//   - FILTER_MODE_WHITELIST, FILTER_PATTERNS: inline glob filter policy
//   - INDEX_WORKERS: crawl worker count
//   - LOG_LEVEL: debug, info, warn or error
//   - LOG_HEALTH_CHECKS: include probes in the access log (default: true)
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO: Go memory limit
//
// # Build Requirements
//
// CGO is required for the SQLite driver:
//
//	CGO_ENABLED=1 go build -o file-server .
package main
