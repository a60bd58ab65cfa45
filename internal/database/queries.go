package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QueryByTrigrams returns records whose postings intersect the trigram set,
// ranked by distinct matching trigrams, then by whether the target field
// contains query, then by shorter target field.
func (d *Database) QueryByTrigrams(ctx context.Context, trigrams []string, field Field, query string, limit int) ([]RankedRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("query_by_trigrams", start, err) }()

	if len(trigrams) == 0 {
		return nil, nil
	}

	set, err := json.Marshal(trigrams)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trigram set: %w", err)
	}

	column := field.column()
	sqlQuery := fmt.Sprintf(`
		SELECT i.id, i.path, i.filename, i.size, i.mtime, i.ctime, COUNT(DISTINCT pt.trigram) AS match_count
		FROM path_trigrams pt
		JOIN indexes i ON pt.path_id = i.id
		WHERE pt.trigram IN (SELECT value FROM json_each(?))
		GROUP BY pt.path_id
		ORDER BY match_count DESC,
			CASE WHEN instr(lower(i.%[1]s), lower(?)) > 0 THEN 1 ELSE 0 END DESC,
			LENGTH(i.%[1]s) ASC,
			i.id ASC
		LIMIT ?
	`, column)

	rows, err := d.db.QueryContext(ctx, sqlQuery, string(set), query, limit)
	if err != nil {
		return nil, fmt.Errorf("trigram query failed: %w", err)
	}
	defer rows.Close()

	var results []RankedRecord
	for rows.Next() {
		var ranked RankedRecord
		var size, mtime, ctime int64
		if err = rows.Scan(
			&ranked.ID, &ranked.Path, &ranked.Filename,
			&size, &mtime, &ctime, &ranked.MatchCount,
		); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		ranked.Size = uint64(size)
		ranked.Mtime = uint64(mtime)
		ranked.Ctime = uint64(ctime)
		results = append(results, ranked)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return results, nil
}

// LikeQuery returns up to limit records whose field matches the SQL LIKE
// pattern, in insertion order.
func (d *Database) LikeQuery(ctx context.Context, field Field, pattern string, limit int) ([]IndexRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("like_query", start, err) }()

	sqlQuery := fmt.Sprintf(
		`SELECT id, path, filename, size, mtime, ctime FROM indexes WHERE %s LIKE ? ORDER BY id LIMIT ?`,
		field.column(),
	)

	rows, err := d.db.QueryContext(ctx, sqlQuery, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("like query failed: %w", err)
	}
	defer rows.Close()

	var records []IndexRecord
	records, err = scanRecords(rows)
	return records, err
}

// AggregateStats computes count, total size and truncated average size.
func (d *Database) AggregateStats(ctx context.Context) (IndexStats, error) {
	start := time.Now()
	var count, total, avg int64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(CAST(AVG(size) AS INTEGER), 0)
		FROM indexes
	`).Scan(&count, &total, &avg)
	recordQuery("aggregate_stats", start, err)
	if err != nil {
		return IndexStats{}, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	return IndexStats{
		Count:       uint64(count),
		TotalSize:   uint64(total),
		AverageSize: uint64(avg),
	}, nil
}

// EntriesInDirectory returns the indexed files directly inside dir.
func (d *Database) EntriesInDirectory(ctx context.Context, dir string) ([]IndexRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("entries_in_directory", start, err) }()

	prefix := directoryPrefix(dir)
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, path, filename, size, mtime, ctime FROM indexes WHERE path LIKE ? ESCAPE '\' ORDER BY filename`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("directory query failed: %w", err)
	}
	defer rows.Close()

	all, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	entries := make([]IndexRecord, 0, len(all))
	for _, rec := range all {
		rest := strings.TrimPrefix(rec.Path, prefix)
		if rest != "" && !strings.Contains(rest, "/") {
			entries = append(entries, rec)
		}
	}
	return entries, nil
}

// DirectorySize sums the size of every indexed file under dir.
func (d *Database) DirectorySize(ctx context.Context, dir string) (uint64, error) {
	start := time.Now()
	var total int64
	err := d.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM indexes WHERE path LIKE ? ESCAPE '\'`,
		escapeLike(directoryPrefix(dir))+"%",
	).Scan(&total)
	recordQuery("directory_size", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to sum directory size: %w", err)
	}
	return uint64(total), nil
}

// directoryPrefix normalizes dir to a forward-slash path ending in "/".
func directoryPrefix(dir string) string {
	dir = strings.ReplaceAll(dir, "\\", "/")
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir
}

// escapeLike escapes LIKE wildcards so s matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
