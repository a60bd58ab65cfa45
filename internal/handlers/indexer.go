package handlers

import (
	"errors"
	"net/http"
	"path"

	"file-server/internal/database"
	"file-server/internal/indexer"
	"file-server/internal/logging"
	"file-server/internal/memory"
)

// IndexerStats is the body of the stats response.
type IndexerStats struct {
	FileCount                uint64 `json:"fileCount"`
	TotalSize                uint64 `json:"totalSize"`
	AverageSize              uint64 `json:"averageSize"`
	HumanReadableTotalSize   string `json:"humanReadableTotalSize"`
	HumanReadableAverageSize string `json:"humanReadableAverageSize"`
}

// GetIndexerStats handles GET /api/filesystem/indexer/stats.
func (h *Handlers) GetIndexerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.indexer.Stats(r.Context())
	if err != nil {
		logging.Error("Error getting indexer stats: %v", err)
		writeJSONStatusCode(w, map[string]string{
			"status":  "error",
			"message": "Failed to get indexer statistics: " + err.Error(),
		}, storeErrorStatus(err))
		return
	}

	writeJSONStatusCode(w, map[string]interface{}{
		"status": "success",
		"stats": IndexerStats{
			FileCount:                stats.Count,
			TotalSize:                stats.TotalSize,
			AverageSize:              stats.AverageSize,
			HumanReadableTotalSize:   memory.FormatBytes(clampInt64(stats.TotalSize)),
			HumanReadableAverageSize: memory.FormatBytes(clampInt64(stats.AverageSize)),
		},
	}, http.StatusOK)
}

func clampInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}

// RefreshIndex handles POST /api/filesystem/refresh-index. The crawl runs in
// the background; a second request while it runs gets 409.
func (h *Handlers) RefreshIndex(w http.ResponseWriter, _ *http.Request) {
	if err := h.indexer.TriggerFullReindex(); err != nil {
		if errors.Is(err, indexer.ErrReindexInProgress) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		logging.Error("Error starting file indexer: %v", err)
		writeJSONError(w, "Failed to start reindex", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "started", http.StatusAccepted)
}

// RebuildTrigrams handles POST /api/filesystem/indexer/rebuild-trigrams.
func (h *Handlers) RebuildTrigrams(w http.ResponseWriter, r *http.Request) {
	processed, err := h.indexer.RebuildTrigramIndex(r.Context())
	if err != nil {
		if errors.Is(err, indexer.ErrReindexInProgress) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		logging.Error("Trigram rebuild failed: %v", err)
		writeJSONError(w, "Trigram rebuild failed", storeErrorStatus(err))
		return
	}
	writeJSONStatusCode(w, map[string]interface{}{
		"status":  "success",
		"records": processed,
	}, http.StatusOK)
}

// GetDirectoryEntries handles GET /api/filesystem/indexer/entries?path=.
// It lists the indexed files directly inside the directory.
func (h *Handlers) GetDirectoryEntries(w http.ResponseWriter, r *http.Request) {
	dir, ok := directoryParam(w, r)
	if !ok {
		return
	}

	entries, err := h.store.EntriesInDirectory(r.Context(), dir)
	if err != nil {
		logging.Error("Listing indexed entries of %s failed: %v", dir, err)
		writeJSONError(w, "Failed to list directory", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []database.IndexRecord{}
	}

	writeJSONStatusCode(w, map[string]interface{}{
		"path":    dir,
		"entries": entries,
	}, http.StatusOK)
}

// GetDirectorySize handles GET /api/filesystem/indexer/size?path=.
func (h *Handlers) GetDirectorySize(w http.ResponseWriter, r *http.Request) {
	dir, ok := directoryParam(w, r)
	if !ok {
		return
	}

	size, err := h.store.DirectorySize(r.Context(), dir)
	if err != nil {
		logging.Error("Computing indexed size of %s failed: %v", dir, err)
		writeJSONError(w, "Failed to compute directory size", http.StatusInternalServerError)
		return
	}

	writeJSONStatusCode(w, map[string]interface{}{
		"path":              dir,
		"size":              size,
		"humanReadableSize": memory.FormatBytes(clampInt64(size)),
	}, http.StatusOK)
}

// directoryParam reads the absolute directory in the path query parameter.
func directoryParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	dir := r.URL.Query().Get("path")
	if dir == "" || !path.IsAbs(dir) {
		writeJSONError(w, "An absolute path parameter is required", http.StatusBadRequest)
		return "", false
	}
	return path.Clean(dir), true
}
