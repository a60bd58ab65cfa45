package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"file-server/internal/logging"
	"file-server/internal/metrics"
)

// Default timeout for connectivity checks
const defaultTimeout = 5 * time.Second

const schema = `
	CREATE TABLE IF NOT EXISTS indexes (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		path     TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		mtime    INTEGER NOT NULL DEFAULT 0,
		ctime    INTEGER NOT NULL DEFAULT 0,
		size     INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS path_trigrams (
		id      INTEGER PRIMARY KEY,
		path_id INTEGER NOT NULL REFERENCES indexes(id) ON DELETE CASCADE,
		trigram TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trigram ON path_trigrams(trigram);
	CREATE INDEX IF NOT EXISTS idx_trigram_path_id ON path_trigrams(path_id);
	CREATE INDEX IF NOT EXISTS idx_indexes_filename ON indexes(filename);
`

// Database manages the SQLite file index.
type Database struct {
	db      *sql.DB
	dbPath  string
	created bool
}

// New opens (creating if needed) the index database at dbPath and ensures
// the schema exists. The parent directory must already exist.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// Immediate transactions take the write lock at BEGIN so the crawler and
	// the watcher queue on busy_timeout instead of failing on lock upgrade.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	exists, err := d.TableExists(ctx, "indexes")
	if err != nil {
		return err
	}
	d.created = !exists

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// Created reports whether New had to create the record table, which means
// the index has never been populated.
func (d *Database) Created() bool {
	return d.created
}

// TableExists reports whether a table with the given name exists.
func (d *Database) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for table %s: %w", name, err)
	}
	return count > 0, nil
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Begin starts a write transaction. The caller must Commit or Rollback it.
func (d *Database) Begin(ctx context.Context) (Tx, error) {
	start := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, start: start}, nil
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection and file size metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))

	for label, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		if info, err := os.Stat(d.dbPath + suffix); err == nil {
			metrics.DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
		}
	}
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file %s is read-only (mode %v), writes will fail", path, info.Mode())
		}
	}

	return nil
}
