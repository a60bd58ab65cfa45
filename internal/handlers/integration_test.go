package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"file-server/internal/database"
	"file-server/internal/filesystem"
	"file-server/internal/filter"
	"file-server/internal/indexer"
	"file-server/internal/search"
	"file-server/internal/watcher"
)

// =============================================================================
// Integration tests against a real SQLite index
// =============================================================================

type integration struct {
	h          *Handlers
	root       string
	db         *database.Database
	idx        *indexer.Indexer
	controller *watcher.Controller
}

func setupIntegration(t *testing.T) *integration {
	t.Helper()

	tempDir := t.TempDir()
	root := filepath.Join(tempDir, "files")
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"docs/report.pdf":  "quarterly",
		"docs/summary.txt": "short",
		"top.txt":          "top level",
		".hidden":          "secret",
	} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	db, err := database.New(context.Background(), filepath.Join(tempDir, "index.db"))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	idx := indexer.New(db, []string{root}, filter.Policy{ExcludeHidden: true})
	config := indexer.DefaultCrawlerConfig()
	config.NumWorkers = 2
	idx.SetCrawlerConfig(config)
	t.Cleanup(idx.Close)

	controller := watcher.NewController(func() (watcher.Source, error) {
		return watcher.NewPollSource([]string{root}, 20*time.Millisecond, filesystem.WalkOptions{}), nil
	}, idx)
	t.Cleanup(func() { _ = controller.Stop() })

	if _, err := idx.Reindex(context.Background()); err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}

	return &integration{
		h:          New(idx, search.New(db), db, controller),
		root:       root,
		db:         db,
		idx:        idx,
		controller: controller,
	}
}

func (it *integration) search(t *testing.T, query string) []database.IndexRecord {
	t.Helper()
	rec := httptest.NewRecorder()
	it.h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/search?q="+query, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("search %q: status = %d, body %s", query, rec.Code, rec.Body.String())
	}
	var results []database.IndexRecord
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("search %q: decode error = %v", query, err)
	}
	return results
}

func TestIntegrationSearch(t *testing.T) {
	it := setupIntegration(t)

	results := it.search(t, "report")
	if len(results) == 0 || results[0].Filename != "report.pdf" {
		t.Fatalf("search report = %+v, want report.pdf first", results)
	}
	if results[0].Size != uint64(len("quarterly")) {
		t.Errorf("size = %d, want %d", results[0].Size, len("quarterly"))
	}

	if got := it.search(t, "hidden"); len(got) != 0 {
		t.Errorf("hidden file was indexed: %+v", got)
	}
}

func TestIntegrationSearchStoreClosed(t *testing.T) {
	it := setupIntegration(t)
	_ = it.db.Close()

	for _, query := range []string{"rep", "report"} {
		rec := httptest.NewRecorder()
		it.h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/search?q="+query, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("search %q on closed store: status = %d, want 503", query, rec.Code)
		}
	}
}

func TestIntegrationStatsAndDirectories(t *testing.T) {
	it := setupIntegration(t)

	rec := httptest.NewRecorder()
	it.h.GetIndexerStats(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/indexer/stats", nil))
	var stats struct {
		Stats IndexerStats `json:"stats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	wantTotal := uint64(len("quarterly") + len("short") + len("top level"))
	if stats.Stats.FileCount != 3 || stats.Stats.TotalSize != wantTotal {
		t.Errorf("stats = %+v, want 3 files totalling %d bytes", stats.Stats, wantTotal)
	}

	docs := filter.NormalizePath(filepath.Join(it.root, "docs"))
	rec = httptest.NewRecorder()
	it.h.GetDirectoryEntries(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/indexer/entries?path="+docs, nil))
	var listing struct {
		Entries []database.IndexRecord `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Entries) != 2 {
		t.Errorf("entries of docs = %+v, want 2", listing.Entries)
	}

	rec = httptest.NewRecorder()
	root := filter.NormalizePath(it.root)
	it.h.GetDirectorySize(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/indexer/size?path="+root, nil))
	var size struct {
		Size uint64 `json:"size"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&size); err != nil {
		t.Fatal(err)
	}
	if size.Size != wantTotal {
		t.Errorf("size of root = %d, want %d", size.Size, wantTotal)
	}
}

func TestIntegrationRefreshIndexConflict(t *testing.T) {
	it := setupIntegration(t)

	first := httptest.NewRecorder()
	it.h.RefreshIndex(first, httptest.NewRequest(http.MethodPost, "/api/filesystem/refresh-index", nil))
	if first.Code != http.StatusAccepted {
		t.Fatalf("first refresh status = %d, want 202", first.Code)
	}

	// The background crawl may already have finished on a small tree, so a
	// second request is either accepted or rejected as a conflict.
	second := httptest.NewRecorder()
	it.h.RefreshIndex(second, httptest.NewRequest(http.MethodPost, "/api/filesystem/refresh-index", nil))
	if second.Code != http.StatusAccepted && second.Code != http.StatusConflict {
		t.Errorf("second refresh status = %d, want 202 or 409", second.Code)
	}
}

func TestIntegrationWatcherIndexesNewFiles(t *testing.T) {
	it := setupIntegration(t)

	rec := httptest.NewRecorder()
	it.h.StartWatcher(rec, httptest.NewRequest(http.MethodPost, "/api/filesystem/watcher/start", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d", rec.Code)
	}

	created := filepath.Join(it.root, "zebra-notes.txt")
	deadline := time.Now().Add(5 * time.Second)
	for attempt := 1; ; attempt++ {
		// Growing the file each round turns a write that raced the first
		// snapshot into a modify event.
		content := fmt.Sprintf("%0*d", attempt, 0)
		if err := os.WriteFile(created, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if results := it.search(t, "zebra"); len(results) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher never indexed the new file")
		}
		time.Sleep(100 * time.Millisecond)
	}

	rec = httptest.NewRecorder()
	it.h.StopWatcher(rec, httptest.NewRequest(http.MethodPost, "/api/filesystem/watcher/stop", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("stop status = %d", rec.Code)
	}
	if it.controller.Running() {
		t.Error("controller still running after stop")
	}
}

func TestIntegrationHealth(t *testing.T) {
	it := setupIntegration(t)

	rec := httptest.NewRecorder()
	it.h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status code = %d, body %s", rec.Code, rec.Body.String())
	}

	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != statusHealthy || body.Store != "ok" {
		t.Errorf("health = %+v", body)
	}
	if body.LastReport == nil || body.LastReport.Indexed != 3 {
		t.Errorf("lastReport = %+v, want 3 indexed", body.LastReport)
	}
	if !body.Roots[it.root] {
		t.Errorf("roots = %v, want %s reachable", body.Roots, it.root)
	}
}
