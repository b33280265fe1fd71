package startup

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"media-fetch/internal/logging"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
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

// StagingInfo describes the staging area for the startup log.
type StagingInfo struct {
	Root             string
	Temporary        bool
	DeleteAfterServe bool
	MaxAge           time.Duration
	SweepInterval    time.Duration
}

const rule = "------------------------------------------------------------"

// section starts a titled block of the startup log.
func section(format string, args ...interface{}) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(format, args...)
	logging.Info(rule)
}

// LogStagingInit logs staging directory setup
func LogStagingInit(info StagingInfo, writeErr error) {
	section("STAGING DIRECTORY")

	if info.Temporary {
		logging.Info("  Directory:  %s (temporary, removed on shutdown)", info.Root)
	} else {
		logging.Info("  Directory:  %s", info.Root)
	}

	if writeErr != nil {
		logging.Warn("  Staging directory is not writable: %v", writeErr)
		logging.Warn("  Downloads will fail until this is fixed")
	} else {
		logging.Info("  [OK] Staging directory is writable")
	}

	if info.DeleteAfterServe {
		logging.Info("  Served files:  deleted after the response completes")
	} else {
		logging.Info("  Served files:  kept until they expire")
	}

	if info.SweepInterval > 0 && info.MaxAge > 0 {
		logging.Info("  Expiry:        files older than %v, checked every %v", info.MaxAge, info.SweepInterval)
	} else {
		logging.Info("  Expiry:        DISABLED")
	}
}

// LogExtractorInit logs the yt-dlp version check
func LogExtractorInit(version string, err error) {
	section("EXTRACTOR INITIALIZATION")

	if err != nil {
		logging.Warn("  yt-dlp check failed: %v", err)
		logging.Warn("  Format listing and downloads will fail until yt-dlp is installed")
		return
	}
	logging.Info("  [OK] yt-dlp %s is available", version)
}

// LogFFmpegInit logs where ffmpeg was found, if anywhere
func LogFFmpegInit(path string, found bool, version string, candidates []string) {
	section("FFMPEG")

	if !found {
		logging.Warn("  FFmpeg not found")
		logging.Warn("  Only formats with both audio and video will be offered")
		if logging.IsDebugEnabled() {
			logging.Debug("  Checked:")
			for _, c := range candidates {
				logging.Debug("    %s", c)
			}
			logging.Debug("    $PATH")
		}
		return
	}

	logging.Info("  [OK] FFmpeg found at %s", path)
	if version != "" {
		logging.Debug("  FFmpeg version: %s", version)
	}
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
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := lo.GroupBy(routes, func(r RouteInfo) string { return getRouteGroup(r.Path) })
		names := lo.Keys(groups)
		sort.Strings(names)

		for _, group := range names {
			logging.Debug("  [%s]", lo.Ternary(group == "", "root", group))
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

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
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
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    API:           http://localhost:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info(rule)
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
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

func printBanner() {
	banner := `
------------------------------------------------------------
                     _ _            __      _       _
  _ __ ___   ___  __| (_) __ _     / _| ___| |_ ___| |__
 | '_ ' _ \ / _ \/ _' | |/ _' |___| |_ / _ \ __/ __| '_ \
 | | | | | |  __/ (_| | | (_| |___|  _|  __/ || (__| | | |
 |_| |_| |_|\___|\__,_|_|\__,_|   |_|  \___|\__\___|_| |_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info(rule)
	logging.Info("SYSTEM INFORMATION")
	logging.Info(rule)
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
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
