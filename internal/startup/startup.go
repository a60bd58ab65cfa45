package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v4/mem"

	"file-server/internal/filter"
	"file-server/internal/logging"
	"file-server/internal/memory"
	"file-server/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Watch modes accepted in WATCH_MODE.
const (
	WatchModePoll   = "poll"
	WatchModeNotify = "notify"
)

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	DatabaseDir  string
	DatabasePath string

	// RootPaths are the configured crawl roots. Empty means every OS mount
	// point.
	RootPaths []string

	IndexingEnabled bool
	WatcherEnabled  bool
	WatchMode       string
	PollInterval    time.Duration

	Filter       filter.Policy
	FilterConfig string
}

// envFiles are loaded in order. godotenv never overrides a variable that is
// already set, so earlier files win over later ones and the real
// environment wins over both.
var envFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads the optional dotenv files into the process environment
// and returns the ones it read. Call it before anything logs, so LOG_LEVEL
// from a file applies.
func LoadEnvFiles() ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("failed to load %s: %w", name, err)
		}
		loaded = append(loaded, name)
	}
	return loaded, nil
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	databaseDir := getEnv("DATABASE_DIR", "./data")
	rootPaths := getEnvList("ROOT_PATHS")
	indexingEnabled := getEnvBool("INDEXING_ENABLED", true)
	watcherEnabled := getEnvBool("FILE_WATCHER_ENABLED", true)
	watchMode := strings.ToLower(getEnv("WATCH_MODE", WatchModePoll))
	pollInterval := getEnvDuration("WATCH_POLL_INTERVAL", 2*time.Second)
	filterConfig := getEnv("FILTER_CONFIG", "")

	policy := filter.Policy{
		WhitelistMode: getEnvBool("FILTER_MODE_WHITELIST", false),
		GlobPatterns:  getEnvList("FILTER_PATTERNS"),
		ExcludeHidden: getEnvBool("EXCLUDE_HIDDEN_FILES", true),
	}

	if watchMode != WatchModePoll && watchMode != WatchModeNotify {
		logging.Warn("  Invalid WATCH_MODE %q, using default: %s", watchMode, WatchModePoll)
		watchMode = WatchModePoll
	}

	logging.Info("  PORT:                  %s", port)
	logging.Info("  METRICS_PORT:          %s", metricsPort)
	logging.Info("  METRICS_ENABLED:       %v", metricsEnabled)
	logging.Info("  DATABASE_DIR:          %s", databaseDir)
	logging.Info("  ROOT_PATHS:            %s", listOrDefault(rootPaths, "(all mount points)"))
	logging.Info("  INDEXING_ENABLED:      %v", indexingEnabled)
	logging.Info("  FILE_WATCHER_ENABLED:  %v", watcherEnabled)
	logging.Info("  WATCH_MODE:            %s", watchMode)
	logging.Info("  WATCH_POLL_INTERVAL:   %v", pollInterval)
	logging.Info("  INDEX_WORKERS:         %d", workers.ForCrawl(16))
	logging.Info("  LOG_HEALTH_CHECKS:     %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	if filterConfig != "" {
		loaded, err := filter.LoadPolicyFile(filterConfig, policy)
		if err != nil {
			return nil, err
		}
		policy = loaded
	} else if err := policy.Validate(); err != nil {
		logging.Warn("  FILTER_PATTERNS: %v (pattern will never match)", err)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEX FILTER")
	logging.Info("------------------------------------------------------------")
	if filterConfig != "" {
		logging.Info("  Loaded from:     %s", filterConfig)
	}
	logging.Info("  Mode:            %s", filterMode(policy))
	logging.Info("  Patterns:        %s", listOrDefault(policy.GlobPatterns, "(none)"))
	logging.Info("  Exclude hidden:  %v", policy.ExcludeHidden)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	databaseDir, err := filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	if err := ensureDirectory(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config := &Config{
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		LogHealthChecks: logHealthChecks,
		DatabaseDir:     databaseDir,
		DatabasePath:    filepath.Join(databaseDir, "index.db"),
		RootPaths:       rootPaths,
		IndexingEnabled: indexingEnabled,
		WatcherEnabled:  watcherEnabled,
		WatchMode:       watchMode,
		PollInterval:    pollInterval,
		Filter:          policy,
		FilterConfig:    filterConfig,
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Indexing:    %s", enabledString(config.IndexingEnabled))
	logging.Info("    Watcher:     %s", enabledString(config.WatcherEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func filterMode(policy filter.Policy) string {
	if policy.WhitelistMode {
		return "whitelist"
	}
	return "blacklist"
}

func listOrDefault(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration, created bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
	if created {
		logging.Info("  Fresh index, initial crawl will run in the background")
	}
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(roots, excluded []string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Roots (%d):", len(roots))
	for _, root := range roots {
		logging.Info("    %s", root)
	}
	if len(excluded) > 0 {
		logging.Debug("  Excluded virtual filesystems: %s", strings.Join(excluded, ", "))
	}
}

// LogTrigramCheck logs the result of the startup posting check.
func LogTrigramCheck(rebuilt bool, duration time.Duration) {
	if rebuilt {
		logging.Info("  [OK] Trigram postings rebuilt in %v", duration)
		return
	}
	logging.Debug("  Trigram postings present")
}

// LogWatcherInit logs the watcher configuration
func LogWatcherInit(enabled bool, mode string, interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("WATCHER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if !enabled {
		logging.Info("  Watcher disabled (start it with POST /api/filesystem/watcher/start)")
		return
	}
	if mode == WatchModePoll {
		logging.Info("  Mode: poll every %v", interval)
	} else {
		logging.Info("  Mode: %s", mode)
	}
}

// LogWatcherStarted logs successful watcher start
func LogWatcherStarted() {
	logging.Info("  [OK] Watcher started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 3)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		return "api/" + parts[1]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// LogMemoryConfig logs how GOMEMLIMIT was configured
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	switch result.Source {
	case "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT:      %s (from environment)", memory.FormatBytes(result.GoMemLimit))
	case "MEMORY_LIMIT":
		logging.Info("  Container limit: %s", memory.FormatBytes(result.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", memory.FormatBytes(result.GoMemLimit), result.Ratio*100)
	default:
		logging.Info("  GOMEMLIMIT:      not configured (set MEMORY_LIMIT to enable)")
	}
	logging.Info("")
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    _______ __        _____
   / ____(_) /__     / ___/___  ______   _____  _____
  / /_  / / / _ \    \__ \/ _ \/ ___/ | / / _ \/ ___/
 / __/ / / /  __/   ___/ /  __/ /   | |/ /  __/ /
/_/   /_/_/\___/   /____/\___/_/    |___/\___/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		logging.Info("  Host memory:     %s total, %s available",
			memory.FormatBytes(clampInt64(vm.Total)), memory.FormatBytes(clampInt64(vm.Available)))
	} else {
		logging.Debug("  Host memory:     unknown (%v)", err)
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func clampInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}

func ensureDirectory(path string) error {
	logging.Debug("  Checking database directory: %s", path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
