package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"file-server/internal/metrics"
)

// sqlTx implements Tx over a database/sql transaction.
type sqlTx struct {
	tx    *sql.Tx
	start time.Time
}

// PutRecord inserts or updates a record keyed by path.
func (t *sqlTx) PutRecord(ctx context.Context, rec *IndexRecord) (int64, error) {
	query := `
	INSERT INTO indexes (path, filename, mtime, ctime, size)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		filename = excluded.filename,
		mtime = excluded.mtime,
		ctime = excluded.ctime,
		size = excluded.size
	RETURNING id
	`

	var id int64
	err := t.tx.QueryRowContext(ctx, query,
		rec.Path,
		rec.Filename,
		int64(rec.Mtime),
		int64(rec.Ctime),
		int64(rec.Size),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert record %s: %w", rec.Path, err)
	}

	rec.ID = id
	return id, nil
}

// ReplacePostings swaps the posting set of a record. The trigram list is
// bound as one JSON array and expanded store-side with json_each.
func (t *sqlTx) ReplacePostings(ctx context.Context, recordID int64, trigrams []string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM path_trigrams WHERE path_id = ?`, recordID); err != nil {
		return fmt.Errorf("failed to delete postings for record %d: %w", recordID, err)
	}

	if len(trigrams) == 0 {
		return nil
	}

	set, err := json.Marshal(trigrams)
	if err != nil {
		return fmt.Errorf("failed to encode trigram set: %w", err)
	}

	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO path_trigrams (path_id, trigram) SELECT ?, value FROM json_each(?)`,
		recordID, string(set),
	)
	if err != nil {
		return fmt.Errorf("failed to insert postings for record %d: %w", recordID, err)
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("insert_postings").Observe(float64(rows))
	}
	return nil
}

// DeleteRecord removes the record and its postings.
func (t *sqlTx) DeleteRecord(ctx context.Context, path string) (bool, error) {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM path_trigrams WHERE path_id IN (SELECT id FROM indexes WHERE path = ?)`, path,
	); err != nil {
		return false, fmt.Errorf("failed to delete postings for %s: %w", path, err)
	}

	result, err := t.tx.ExecContext(ctx, `DELETE FROM indexes WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("failed to delete record %s: %w", path, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_record").Observe(float64(rows))
	}
	return rows > 0, nil
}

// DeleteUnder removes every record whose path lies below dir.
func (t *sqlTx) DeleteUnder(ctx context.Context, dir string) (int64, error) {
	pattern := escapeLike(directoryPrefix(dir)) + "%"

	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM path_trigrams WHERE path_id IN (SELECT id FROM indexes WHERE path LIKE ? ESCAPE '\')`, pattern,
	); err != nil {
		return 0, fmt.Errorf("failed to delete postings under %s: %w", dir, err)
	}

	result, err := t.tx.ExecContext(ctx, `DELETE FROM indexes WHERE path LIKE ? ESCAPE '\'`, pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records under %s: %w", dir, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_under").Observe(float64(rows))
	}
	return rows, nil
}

// ClearPostings deletes every posting.
func (t *sqlTx) ClearPostings(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM path_trigrams`); err != nil {
		return fmt.Errorf("failed to clear postings: %w", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *sqlTx) Commit() error {
	err := t.tx.Commit()
	outcome := "commit"
	if err != nil {
		outcome = "commit_error"
	}
	metrics.DBTransactionDuration.WithLabelValues(outcome).Observe(time.Since(t.start).Seconds())
	return err
}

// Rollback aborts the transaction. Rolling back a finished transaction is a
// no-op so callers can defer it.
func (t *sqlTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(t.start).Seconds())
	return err
}

// GetRecord returns the record stored at path or ErrRecordNotFound.
func (d *Database) GetRecord(ctx context.Context, path string) (*IndexRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_record", start, err) }()

	row := d.db.QueryRowContext(ctx,
		`SELECT id, path, filename, size, mtime, ctime FROM indexes WHERE path = ?`, path)

	var rec IndexRecord
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrRecordNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountRecords returns the number of indexed files.
func (d *Database) CountRecords(ctx context.Context) (int64, error) {
	start := time.Now()
	var count int64
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indexes`).Scan(&count)
	recordQuery("count_records", start, err)
	return count, err
}

// CountPostings returns the number of postings.
func (d *Database) CountPostings(ctx context.Context) (int64, error) {
	start := time.Now()
	var count int64
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM path_trigrams`).Scan(&count)
	recordQuery("count_postings", start, err)
	return count, err
}

// ListRecords pages through records by id.
func (d *Database) ListRecords(ctx context.Context, afterID int64, limit int) ([]IndexRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_records", start, err) }()

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, path, filename, size, mtime, ctime FROM indexes WHERE id > ? ORDER BY id LIMIT ?`,
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []IndexRecord
	records, err = scanRecords(rows)
	return records, err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (IndexRecord, error) {
	var rec IndexRecord
	var size, mtime, ctime int64
	if err := row.Scan(&rec.ID, &rec.Path, &rec.Filename, &size, &mtime, &ctime); err != nil {
		return IndexRecord{}, err
	}
	rec.Size = uint64(size)
	rec.Mtime = uint64(mtime)
	rec.Ctime = uint64(ctime)
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]IndexRecord, error) {
	var records []IndexRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}
