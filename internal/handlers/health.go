package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"file-server/internal/indexer"
	"file-server/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status     string                 `json:"status"`
	Ready      bool                   `json:"ready"`
	Version    string                 `json:"version"`
	Uptime     string                 `json:"uptime"`
	Indexing   bool                   `json:"indexing"`
	LastIndex  string                 `json:"lastIndexed,omitempty"`
	LastError  string                 `json:"lastError,omitempty"`
	LastReport *indexer.CrawlReport   `json:"lastReport,omitempty"`
	Progress   *indexer.IndexProgress `json:"indexProgress,omitempty"`

	FilesIndexed int64           `json:"filesIndexed"`
	Watcher      bool            `json:"watcherRunning"`
	Store        string          `json:"store"`
	Roots        map[string]bool `json:"roots"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthStatus := h.indexer.GetHealthStatus()

	response := HealthResponse{
		Ready:        healthStatus.Ready,
		Version:      startup.Version,
		Uptime:       healthStatus.Uptime,
		Indexing:     healthStatus.Indexing,
		LastError:    healthStatus.LastError,
		LastReport:   healthStatus.LastReport,
		Progress:     healthStatus.IndexProgress,
		FilesIndexed: healthStatus.FilesIndexed,
		Watcher:      h.watcher.Running(),
		Store:        "ok",
		Roots:        h.indexer.StatRoots(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if !healthStatus.LastIndexed.IsZero() {
		response.LastIndex = healthStatus.LastIndexed.Format(time.RFC3339)
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		response.Store = err.Error()
		response.Status = statusDegraded
	}
	if healthStatus.LastError != "" {
		response.Status = statusDegraded
	}

	statusCode := http.StatusOK
	if !healthStatus.Ready {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONStatusCode(w, response, statusCode)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the index has been populated once
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsReady() {
		writeJSONStatus(w, "ready", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
}
