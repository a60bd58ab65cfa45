// Package handlers provides the HTTP API over the file index.
//
// Routes registered by the server:
//
//	GET  /api/filesystem/search?q=&filename_only=true   ranked search
//	GET  /api/filesystem/indexer/stats                   record count and sizes
//	POST /api/filesystem/refresh-index                   background full crawl
//	POST /api/filesystem/indexer/rebuild-trigrams        regenerate postings
//	GET  /api/filesystem/indexer/entries?path=           indexed files in a directory
//	GET  /api/filesystem/indexer/size?path=              indexed bytes under a directory
//	GET  /api/filesystem/watcher                         watcher state
//	POST /api/filesystem/watcher/start, /stop            watcher lifecycle
//	GET  /health, /livez, /readyz                        probes
//	GET  /version                                        build information
//
// Handlers depend on small interfaces (IndexService, Searcher,
// DirectoryReader, WatcherControl) so tests can substitute fakes. Errors are
// JSON objects with an "error" field; a busy crawl slot or watcher state
// conflict returns 409 and an unreachable store returns 503.
package handlers
