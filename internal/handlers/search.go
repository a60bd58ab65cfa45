package handlers

import (
	"errors"
	"net/http"

	"file-server/internal/database"
	"file-server/internal/logging"
	"file-server/internal/search"
)

// Search handles GET /api/filesystem/search?q=&filename_only=true.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if err := search.Validate(query); err != nil {
		writeJSONError(w, "Search query is required", http.StatusBadRequest)
		return
	}
	filenameOnly := r.URL.Query().Get("filename_only") == "true"

	results, err := h.searcher.Search(r.Context(), query, filenameOnly)
	if err != nil {
		logging.Error("Search for %q failed: %v", query, err)
		writeJSONError(w, "Search failed", storeErrorStatus(err))
		return
	}

	writeJSONStatusCode(w, results, http.StatusOK)
}

// storeErrorStatus maps an unreachable store to 503 and anything else to 500.
func storeErrorStatus(err error) int {
	if errors.Is(err, database.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
