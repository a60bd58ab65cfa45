package database

import "errors"

var (
	// ErrRecordNotFound is returned by GetRecord when no record has the path.
	ErrRecordNotFound = errors.New("record not found")

	// ErrUnavailable marks a query or transaction the store could not serve.
	// Callers wrap it around driver errors so the HTTP layer can answer 503.
	ErrUnavailable = errors.New("index store unavailable")
)

// IndexRecord is one indexed file.
type IndexRecord struct {
	ID       int64  `json:"-"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Size     uint64 `json:"size"`
	Mtime    uint64 `json:"mtime"`
	Ctime    uint64 `json:"ctime"`
}

// RankedRecord is a trigram query hit with the number of distinct query
// trigrams found in the record's postings.
type RankedRecord struct {
	IndexRecord
	MatchCount int `json:"matchCount"`
}

// IndexStats holds store-side aggregates over every record.
type IndexStats struct {
	Count       uint64 `json:"fileCount"`
	TotalSize   uint64 `json:"totalSize"`
	AverageSize uint64 `json:"averageSize"`
}

// Field selects the record column a search targets.
type Field string

const (
	FieldPath     Field = "path"
	FieldFilename Field = "filename"
)

// column returns the SQL column for the field. Anything other than
// FieldFilename targets the path.
func (f Field) column() string {
	if f == FieldFilename {
		return "filename"
	}
	return "path"
}
