package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"file-server/internal/database"
	"file-server/internal/filesystem"
	"file-server/internal/handlers"
	"file-server/internal/indexer"
	"file-server/internal/logging"
	"file-server/internal/memory"
	"file-server/internal/metrics"
	"file-server/internal/middleware"
	"file-server/internal/mounts"
	"file-server/internal/search"
	"file-server/internal/startup"
	"file-server/internal/watcher"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Dotenv files must be loaded before the first log line so LOG_LEVEL applies
	loaded, envErr := startup.LoadEnvFiles()

	memoryConfig := memory.ConfigureFromEnv()
	startup.LogMemoryConfig(memoryConfig)

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	if envErr != nil {
		logging.Warn("Failed to load env file: %v", envErr)
	}
	for _, file := range loaded {
		logging.Info("Loaded environment from %s", file)
	}

	ctx := context.Background()

	layout, err := mounts.Discover(ctx, config.RootPaths)
	if err != nil {
		startup.LogFatal("Failed to discover mount points: %v", err)
	}

	metrics.InitializeMetrics(layout.Roots)
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.VolumeResolverForRoots(layout.Roots))

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart), db.Created())

	// Memory monitor pauses crawl workers under heap pressure
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Initialize indexer
	startup.LogIndexerInit(layout.Roots, layout.Excluded)
	idx := indexer.New(db, layout.Roots, config.Filter)
	crawlConfig := indexer.DefaultCrawlerConfig()
	crawlConfig.Exclude = crawlExclusions(config, layout)
	crawlConfig.Throttle = monitor
	idx.SetCrawlerConfig(crawlConfig)

	trigramStart := time.Now()
	rebuilt, err := idx.EnsureTrigramIndex(ctx)
	if err != nil {
		startup.LogFatal("Failed to prepare trigram index: %v", err)
	}
	startup.LogTrigramCheck(rebuilt, time.Since(trigramStart))

	switch {
	case db.Created() && config.IndexingEnabled:
		if err := idx.TriggerFullReindex(); err != nil {
			logging.Error("Failed to start initial crawl: %v", err)
		}
	case db.Created():
		logging.Warn("New database created but INDEXING_ENABLED=false; the index stays empty until a refresh is requested")
		idx.MarkReady()
	default:
		idx.MarkReady()
	}

	// Initialize watcher
	startup.LogWatcherInit(config.WatcherEnabled, config.WatchMode, config.PollInterval)
	controller := watcher.NewController(sourceFactory(config, layout.Roots, watchOptions(idx)), idx)
	if config.WatcherEnabled {
		if err := controller.Start(); err != nil {
			logging.Error("Failed to start watcher: %v", err)
		} else {
			startup.LogWatcherStarted()
		}
	}

	collector := metrics.NewCollector(idx, db, time.Minute)
	collector.Start()

	// Initialize handlers
	h := handlers.New(idx, search.New(db), db, controller)

	// Setup router
	router := setupRouter(h)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply compression, then logging so access lines see the final encoding
	compressed := middleware.Compression(middleware.DefaultCompressionConfig())(router)
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(compressed)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(shutdownTargets{
		server:        srv,
		metricsServer: metricsSrv,
		watcher:       controller,
		collector:     collector,
		monitor:       monitor,
		indexer:       idx,
		db:            db,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	// Wait for shutdown to finish closing the index
	<-shutdownDone
}

// crawlExclusions lists the directories neither crawled nor watched: the
// virtual filesystems found under the roots and the database directory, whose
// WAL changes would otherwise feed back into the index.
func crawlExclusions(config *startup.Config, layout mounts.Layout) []string {
	excluded := make([]string, 0, len(layout.Excluded)+1)
	excluded = append(excluded, layout.Excluded...)
	if config.DatabaseDir != "" {
		excluded = append(excluded, filepath.Clean(config.DatabaseDir))
	}
	return excluded
}

// watchOptions prunes the indexer's excluded directories from watcher walks
// and reports only files the indexer would accept.
func watchOptions(idx *indexer.Indexer) filesystem.WalkOptions {
	exclude := idx.Exclusions()
	skip := make(map[string]bool, len(exclude))
	for _, dir := range exclude {
		skip[dir] = true
	}
	return filesystem.WalkOptions{
		Retry:   filesystem.DefaultRetryConfig(),
		Skip:    skip,
		Include: idx.Eligible,
	}
}

// sourceFactory builds the change source for the configured watch mode.
func sourceFactory(config *startup.Config, roots []string, opts filesystem.WalkOptions) watcher.SourceFactory {
	if config.WatchMode == startup.WatchModeNotify {
		return func() (watcher.Source, error) {
			source, err := watcher.NewNotifySource(roots, opts)
			if err != nil {
				return nil, err
			}
			return source, nil
		}
	}
	return func() (watcher.Source, error) {
		return watcher.NewPollSource(roots, config.PollInterval, opts), nil
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api/filesystem").Subrouter()
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/refresh-index", h.RefreshIndex).Methods("POST")

	// Indexer
	api.HandleFunc("/indexer/stats", h.GetIndexerStats).Methods("GET")
	api.HandleFunc("/indexer/rebuild-trigrams", h.RebuildTrigrams).Methods("POST")
	api.HandleFunc("/indexer/entries", h.GetDirectoryEntries).Methods("GET")
	api.HandleFunc("/indexer/size", h.GetDirectorySize).Methods("GET")

	// Watcher
	api.HandleFunc("/watcher", h.WatcherStatus).Methods("GET")
	api.HandleFunc("/watcher/start", h.StartWatcher).Methods("POST")
	api.HandleFunc("/watcher/stop", h.StopWatcher).Methods("POST")

	return r
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	return &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type shutdownTargets struct {
	server        *http.Server
	metricsServer *http.Server
	watcher       *watcher.Controller
	collector     *metrics.Collector
	monitor       *memory.Monitor
	indexer       *indexer.Indexer
	db            *database.Database
}

var shutdownDone = make(chan struct{})

func handleShutdown(t shutdownTargets) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	defer close(shutdownDone)
	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := t.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if t.metricsServer != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := t.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping watcher")
	if err := t.watcher.Stop(); err != nil && !errors.Is(err, watcher.ErrNotRunning) {
		logging.Warn("Watcher stop error: %v", err)
	}
	startup.LogShutdownStepComplete("Watcher stopped")

	t.collector.Stop()
	t.monitor.Stop()

	startup.LogShutdownStep("Stopping indexer")
	t.indexer.Close()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Closing database")
	if err := t.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
