package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"file-server/internal/database"
	"file-server/internal/indexer"
	"file-server/internal/watcher"
)

// =============================================================================
// Fakes
// =============================================================================

type mockIndexer struct {
	stats        database.IndexStats
	statsErr     error
	triggerErr   error
	triggered    int
	rebuilt      int64
	rebuildErr   error
	ready        bool
	healthStatus indexer.HealthStatus
	roots        map[string]bool
}

func (m *mockIndexer) Stats(context.Context) (database.IndexStats, error) {
	return m.stats, m.statsErr
}

func (m *mockIndexer) TriggerFullReindex() error {
	m.triggered++
	return m.triggerErr
}

func (m *mockIndexer) RebuildTrigramIndex(context.Context) (int64, error) {
	return m.rebuilt, m.rebuildErr
}

func (m *mockIndexer) IsReady() bool { return m.ready }

func (m *mockIndexer) GetHealthStatus() indexer.HealthStatus { return m.healthStatus }

func (m *mockIndexer) StatRoots() map[string]bool { return m.roots }

type mockSearcher struct {
	results      []database.IndexRecord
	err          error
	calls        int
	query        string
	filenameOnly bool
}

func (m *mockSearcher) Search(_ context.Context, query string, filenameOnly bool) ([]database.IndexRecord, error) {
	m.calls++
	m.query = query
	m.filenameOnly = filenameOnly
	return m.results, m.err
}

type mockStore struct {
	entries []database.IndexRecord
	size    uint64
	err     error
	pingErr error
	dir     string
}

func (m *mockStore) EntriesInDirectory(_ context.Context, dir string) ([]database.IndexRecord, error) {
	m.dir = dir
	return m.entries, m.err
}

func (m *mockStore) DirectorySize(_ context.Context, dir string) (uint64, error) {
	m.dir = dir
	return m.size, m.err
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

type mockWatcher struct {
	running  bool
	startErr error
}

func (m *mockWatcher) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return watcher.ErrAlreadyRunning
	}
	m.running = true
	return nil
}

func (m *mockWatcher) Stop() error {
	if !m.running {
		return watcher.ErrNotRunning
	}
	m.running = false
	return nil
}

func (m *mockWatcher) Running() bool { return m.running }

type fixture struct {
	indexer  *mockIndexer
	searcher *mockSearcher
	store    *mockStore
	watcher  *mockWatcher
	h        *Handlers
}

func newFixture() *fixture {
	f := &fixture{
		indexer:  &mockIndexer{ready: true, roots: map[string]bool{"/": true}},
		searcher: &mockSearcher{},
		store:    &mockStore{},
		watcher:  &mockWatcher{},
	}
	f.h = New(f.indexer, f.searcher, f.store, f.watcher)
	return f
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// =============================================================================
// Search
// =============================================================================

func TestSearch(t *testing.T) {
	tests := []struct {
		name             string
		url              string
		wantStatus       int
		wantCalls        int
		wantFilenameOnly bool
	}{
		{"missing query", "/api/filesystem/search", http.StatusBadRequest, 0, false},
		{"empty query", "/api/filesystem/search?q=", http.StatusBadRequest, 0, false},
		{"path search", "/api/filesystem/search?q=report", http.StatusOK, 1, false},
		{"filename only", "/api/filesystem/search?q=report&filename_only=true", http.StatusOK, 1, true},
		{"filename only must be literal true", "/api/filesystem/search?q=report&filename_only=1", http.StatusOK, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.searcher.results = []database.IndexRecord{{Path: "/data/report.pdf", Filename: "report.pdf", Size: 10}}

			rec := httptest.NewRecorder()
			f.h.Search(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if f.searcher.calls != tt.wantCalls {
				t.Errorf("searcher calls = %d, want %d", f.searcher.calls, tt.wantCalls)
			}
			if tt.wantCalls > 0 && f.searcher.filenameOnly != tt.wantFilenameOnly {
				t.Errorf("filenameOnly = %v, want %v", f.searcher.filenameOnly, tt.wantFilenameOnly)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestSearchResponseBody(t *testing.T) {
	f := newFixture()
	f.searcher.results = []database.IndexRecord{
		{ID: 7, Path: "/data/report.pdf", Filename: "report.pdf", Size: 10, Mtime: 100},
	}

	rec := httptest.NewRecorder()
	f.h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/search?q=report", nil))

	var body []map[string]interface{}
	decode(t, rec, &body)
	if len(body) != 1 {
		t.Fatalf("got %d results, want 1", len(body))
	}
	if body[0]["path"] != "/data/report.pdf" || body[0]["filename"] != "report.pdf" {
		t.Errorf("result = %v", body[0])
	}
	if _, ok := body[0]["ID"]; ok {
		t.Error("record id should not be serialized")
	}
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"store unavailable", fmt.Errorf("query: %w", indexer.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"other failure", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.searcher.err = tt.err

			rec := httptest.NewRecorder()
			f.h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/search?q=report", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

// =============================================================================
// Indexer endpoints
// =============================================================================

func TestGetIndexerStats(t *testing.T) {
	f := newFixture()
	f.indexer.stats = database.IndexStats{Count: 3, TotalSize: 3072, AverageSize: 1024}

	rec := httptest.NewRecorder()
	f.h.GetIndexerStats(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/indexer/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status string       `json:"status"`
		Stats  IndexerStats `json:"stats"`
	}
	decode(t, rec, &body)

	want := IndexerStats{
		FileCount:                3,
		TotalSize:                3072,
		AverageSize:              1024,
		HumanReadableTotalSize:   "3.0 KiB",
		HumanReadableAverageSize: "1.0 KiB",
	}
	if body.Status != "success" || body.Stats != want {
		t.Errorf("body = %+v, want success with %+v", body, want)
	}
}

func TestGetIndexerStatsError(t *testing.T) {
	f := newFixture()
	f.indexer.statsErr = fmt.Errorf("aggregate: %w", indexer.ErrStoreUnavailable)

	rec := httptest.NewRecorder()
	f.h.GetIndexerStats(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/indexer/stats", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "error" || !strings.Contains(body["message"], "Failed to get indexer statistics") {
		t.Errorf("body = %v", body)
	}
}

func TestRefreshIndex(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"started", nil, http.StatusAccepted},
		{"already running", indexer.ErrReindexInProgress, http.StatusConflict},
		{"failure", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.indexer.triggerErr = tt.err

			rec := httptest.NewRecorder()
			f.h.RefreshIndex(rec, httptest.NewRequest(http.MethodPost, "/api/filesystem/refresh-index", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if f.indexer.triggered != 1 {
				t.Errorf("TriggerFullReindex called %d times, want 1", f.indexer.triggered)
			}
		})
	}
}

func TestRebuildTrigrams(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"busy", indexer.ErrReindexInProgress, http.StatusConflict},
		{"store down", fmt.Errorf("begin: %w", indexer.ErrStoreUnavailable), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.indexer.rebuilt = 42
			f.indexer.rebuildErr = tt.err

			rec := httptest.NewRecorder()
			f.h.RebuildTrigrams(rec, httptest.NewRequest(http.MethodPost, "/api/filesystem/indexer/rebuild-trigrams", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.err == nil {
				var body map[string]interface{}
				decode(t, rec, &body)
				if body["records"] != float64(42) {
					t.Errorf("records = %v, want 42", body["records"])
				}
			}
		})
	}
}

func TestDirectoryEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantDir    string
	}{
		{"missing path", "/api/filesystem/indexer/entries", http.StatusBadRequest, ""},
		{"relative path", "/api/filesystem/indexer/entries?path=data", http.StatusBadRequest, ""},
		{"absolute path", "/api/filesystem/indexer/entries?path=/data/", http.StatusOK, "/data"},
		{"cleaned path", "/api/filesystem/indexer/entries?path=/data/x/../docs", http.StatusOK, "/data/docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			rec := httptest.NewRecorder()
			f.h.GetDirectoryEntries(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if f.store.dir != tt.wantDir {
				t.Errorf("store queried with %q, want %q", f.store.dir, tt.wantDir)
			}
		})
	}
}

func TestGetDirectoryEntriesEmpty(t *testing.T) {
	f := newFixture()

	rec := httptest.NewRecorder()
	f.h.GetDirectoryEntries(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/indexer/entries?path=/data", nil))

	var body struct {
		Path    string                 `json:"path"`
		Entries []database.IndexRecord `json:"entries"`
	}
	decode(t, rec, &body)
	if body.Entries == nil || len(body.Entries) != 0 {
		t.Errorf("entries = %v, want empty list", body.Entries)
	}
	if body.Path != "/data" {
		t.Errorf("path = %q, want /data", body.Path)
	}
}

func TestGetDirectorySize(t *testing.T) {
	f := newFixture()
	f.store.size = 2048

	rec := httptest.NewRecorder()
	f.h.GetDirectorySize(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/indexer/size?path=/data", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	decode(t, rec, &body)
	if body["size"] != float64(2048) || body["humanReadableSize"] != "2.0 KiB" {
		t.Errorf("body = %v", body)
	}
}

func TestGetDirectorySizeError(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("disk I/O error")

	rec := httptest.NewRecorder()
	f.h.GetDirectorySize(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/indexer/size?path=/data", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// =============================================================================
// Watcher
// =============================================================================

func TestWatcherLifecycle(t *testing.T) {
	f := newFixture()

	steps := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantState  bool
	}{
		{"stop while stopped", f.h.StopWatcher, http.StatusConflict, false},
		{"start", f.h.StartWatcher, http.StatusOK, true},
		{"start twice", f.h.StartWatcher, http.StatusConflict, true},
		{"stop", f.h.StopWatcher, http.StatusOK, false},
	}

	for _, step := range steps {
		rec := httptest.NewRecorder()
		step.handler(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != step.wantStatus {
			t.Errorf("%s: status = %d, want %d", step.name, rec.Code, step.wantStatus)
		}

		rec = httptest.NewRecorder()
		f.h.WatcherStatus(rec, httptest.NewRequest(http.MethodGet, "/api/filesystem/watcher", nil))
		var body map[string]bool
		decode(t, rec, &body)
		if body["running"] != step.wantState {
			t.Errorf("%s: running = %v, want %v", step.name, body["running"], step.wantState)
		}
	}
}

func TestStartWatcherSourceFailure(t *testing.T) {
	f := newFixture()
	f.watcher.startErr = errors.New("too many open files")

	rec := httptest.NewRecorder()
	f.h.StartWatcher(rec, httptest.NewRequest(http.MethodPost, "/api/filesystem/watcher/start", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// =============================================================================
// Health
// =============================================================================

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		lastError  string
		pingErr    error
		wantStatus int
		wantState  string
	}{
		{"healthy", true, "", nil, http.StatusOK, statusHealthy},
		{"starting", false, "", nil, http.StatusServiceUnavailable, statusStarting},
		{"crawl failed", true, "begin batch: store unavailable", nil, http.StatusOK, statusDegraded},
		{"store down", true, "", errors.New("database is locked"), http.StatusOK, statusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.indexer.healthStatus = indexer.HealthStatus{
				Ready:       tt.ready,
				Uptime:      "1m0s",
				LastError:   tt.lastError,
				LastIndexed: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			f.store.pingErr = tt.pingErr
			f.watcher.running = true

			rec := httptest.NewRecorder()
			f.h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body HealthResponse
			decode(t, rec, &body)
			if body.Status != tt.wantState {
				t.Errorf("status = %q, want %q", body.Status, tt.wantState)
			}
			if !body.Watcher {
				t.Error("watcherRunning = false, want true")
			}
			if body.LastIndex != "2026-01-02T03:04:05Z" {
				t.Errorf("lastIndexed = %q", body.LastIndex)
			}
			if !body.Roots["/"] {
				t.Errorf("roots = %v", body.Roots)
			}
		})
	}
}

func TestLivenessCheck(t *testing.T) {
	f := newFixture()

	rec := httptest.NewRecorder()
	f.h.LivenessCheck(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "alive") {
		t.Errorf("GET /livez = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	f.h.LivenessCheck(rec, httptest.NewRequest(http.MethodHead, "/livez", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d body bytes", rec.Code, rec.Body.Len())
	}
}

func TestReadinessCheck(t *testing.T) {
	for _, ready := range []bool{true, false} {
		f := newFixture()
		f.indexer.ready = ready

		rec := httptest.NewRecorder()
		f.h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		want := http.StatusOK
		if !ready {
			want = http.StatusServiceUnavailable
		}
		if rec.Code != want {
			t.Errorf("ready=%v: status = %d, want %d", ready, rec.Code, want)
		}
	}
}

func TestGetVersion(t *testing.T) {
	f := newFixture()

	rec := httptest.NewRecorder()
	f.h.GetVersion(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var body map[string]string
	decode(t, rec, &body)
	if body["version"] == "" || body["goVersion"] == "" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Error("expected Cache-Control: no-cache")
	}
}
