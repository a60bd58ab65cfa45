// Package database is the SQLite-backed persistent store of the file index.
//
// It owns two tables:
//   - indexes: one row per indexed file, keyed by its forward-slash path
//   - path_trigrams: the postings that map each trigram to a record id
//
// Writers go through Tx, which pairs record upserts with posting
// replacement inside one transaction. Readers use the trigram set lookup,
// the LIKE substring lookup and store-side aggregates, so no caller has to
// load the whole index into memory.
//
// The database runs in WAL mode with immediate write transactions so the
// crawler and the watcher can write concurrently while searches read.
package database
