package handlers

import (
	"errors"
	"net/http"

	"file-server/internal/logging"
	"file-server/internal/watcher"
)

// StartWatcher handles POST /api/filesystem/watcher/start.
func (h *Handlers) StartWatcher(w http.ResponseWriter, _ *http.Request) {
	if err := h.watcher.Start(); err != nil {
		if errors.Is(err, watcher.ErrAlreadyRunning) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		logging.Error("Failed to start file watcher: %v", err)
		writeJSONError(w, "Failed to start file watcher", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "running", http.StatusOK)
}

// StopWatcher handles POST /api/filesystem/watcher/stop.
func (h *Handlers) StopWatcher(w http.ResponseWriter, _ *http.Request) {
	if err := h.watcher.Stop(); err != nil {
		if errors.Is(err, watcher.ErrNotRunning) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		logging.Error("Failed to stop file watcher: %v", err)
		writeJSONError(w, "Failed to stop file watcher", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "stopped", http.StatusOK)
}

// WatcherStatus handles GET /api/filesystem/watcher.
func (h *Handlers) WatcherStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatusCode(w, map[string]bool{"running": h.watcher.Running()}, http.StatusOK)
}
