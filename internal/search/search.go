// Package search answers substring queries against the trigram index.
//
// Queries of up to three characters are served by a direct LIKE scan when it
// finds anything. Longer queries are ranked by the number of distinct query
// trigrams each record shares, and a LIKE scan tops up the result when the
// ranking finds fewer than FallbackThreshold records.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"file-server/internal/database"
	"file-server/internal/logging"
	"file-server/internal/metrics"
	"file-server/internal/trigram"
)

const (
	// ResultLimit caps each store query.
	ResultLimit = 100
	// FallbackThreshold is the ranked result count below which the LIKE
	// scan is merged in.
	FallbackThreshold = 5
	// ShortQueryLength is the longest query, in characters, that tries the
	// direct scan first.
	ShortQueryLength = 3
)

// ErrInvalidQuery is returned for an empty query.
var ErrInvalidQuery = errors.New("search query must not be empty")

// Validate rejects queries the engine refuses to run.
func Validate(query string) error {
	if query == "" {
		return ErrInvalidQuery
	}
	return nil
}

// Engine runs searches. It only reads from the store.
type Engine struct {
	store database.Reader
}

// New creates an Engine over store.
func New(store database.Reader) *Engine {
	return &Engine{store: store}
}

// Search returns records whose path, or filename when filenameOnly is set,
// matches query. An empty query returns no results without touching the
// store.
func (e *Engine) Search(ctx context.Context, query string, filenameOnly bool) ([]database.IndexRecord, error) {
	start := time.Now()
	results, path, err := e.search(ctx, query, filenameOnly)
	if err != nil {
		return nil, err
	}

	metrics.SearchRequestsTotal.WithLabelValues(path).Inc()
	metrics.SearchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	metrics.SearchResultsReturned.Observe(float64(len(results)))
	logging.Debug("Search %q (filename_only=%v) served by %s: %d results in %v",
		query, filenameOnly, path, len(results), time.Since(start))

	return results, nil
}

// search returns the results and the label of the step that produced them.
func (e *Engine) search(ctx context.Context, query string, filenameOnly bool) ([]database.IndexRecord, string, error) {
	if Validate(query) != nil {
		return []database.IndexRecord{}, "empty", nil
	}

	field := database.FieldPath
	if filenameOnly {
		field = database.FieldFilename
	}
	pattern := "%" + query + "%"

	if utf8.RuneCountInString(query) <= ShortQueryLength {
		direct, err := e.store.LikeQuery(ctx, field, pattern, ResultLimit)
		if err != nil {
			return nil, "", storeUnavailable(err)
		}
		if len(direct) > 0 {
			return direct, "short_like", nil
		}
	}

	trigrams := trigram.Derive(query)
	if len(trigrams) == 0 {
		return []database.IndexRecord{}, "trigram", nil
	}

	ranked, err := e.store.QueryByTrigrams(ctx, trigrams, field, query, ResultLimit)
	if err != nil {
		return nil, "", storeUnavailable(err)
	}

	results := make([]database.IndexRecord, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, r.IndexRecord)
	}

	if len(results) >= FallbackThreshold {
		return results, "trigram", nil
	}

	fallback, err := e.store.LikeQuery(ctx, field, pattern, ResultLimit)
	if err != nil {
		return nil, "", fmt.Errorf("fallback: %w", storeUnavailable(err))
	}
	return mergeByPath(results, fallback), "like_fallback", nil
}

// storeUnavailable tags a failed store query so callers can tell an
// unreachable index from a bad request. The store already names the query.
func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %w", database.ErrUnavailable, err)
}

// mergeByPath appends the extra records whose path is not already present.
func mergeByPath(results, extra []database.IndexRecord) []database.IndexRecord {
	seen := make(map[string]struct{}, len(results)+len(extra))
	for _, r := range results {
		seen[r.Path] = struct{}{}
	}
	for _, r := range extra {
		if _, ok := seen[r.Path]; ok {
			continue
		}
		seen[r.Path] = struct{}{}
		results = append(results, r)
	}
	return results
}
