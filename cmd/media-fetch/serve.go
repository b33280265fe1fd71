package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-fetch/internal/extractor"
	"media-fetch/internal/fetcher"
	"media-fetch/internal/ffmpeg"
	"media-fetch/internal/filesystem"
	"media-fetch/internal/handlers"
	"media-fetch/internal/logging"
	"media-fetch/internal/memory"
	"media-fetch/internal/metrics"
	"media-fetch/internal/middleware"
	"media-fetch/internal/staging"
	"media-fetch/internal/startup"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	extractorProbeTimeout = 10 * time.Second
	shutdownTimeout       = 30 * time.Second
)

func serve(v *viper.Viper) error {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	memory.Configure(v)
	metrics.InitializeMetrics()

	fs := filesystem.NewRetryFs(afero.NewOsFs(), filesystem.DefaultRetryConfig())

	// Initialize staging area
	area, err := staging.New(fs, config.StagingDir)
	if err != nil {
		return err
	}
	startup.LogStagingInit(startup.StagingInfo{
		Root:             area.Root(),
		Temporary:        area.Owned(),
		DeleteAfterServe: config.DeleteAfterServe,
		MaxAge:           config.StagingMaxAge,
		SweepInterval:    config.StagingSweepInterval,
	}, area.Writable())
	area.StartJanitor(config.StagingSweepInterval, config.StagingMaxAge)

	// Initialize extractor
	ext := extractor.NewYtDlp(config.YtDlpPath)
	ctx, cancel := context.WithTimeout(context.Background(), extractorProbeTimeout)
	ytdlpVersion, err := ext.Version(ctx)
	cancel()
	startup.LogExtractorInit(ytdlpVersion, err)

	// Locate ffmpeg
	locator := newLocator(fs, config.FFmpegPath)
	ffmpegPath, found := locator.Locate()
	var ffmpegVersion string
	if found {
		if ffmpegVersion, err = ffmpeg.Version(context.Background(), ffmpegPath); err != nil {
			logging.Warn("Failed to read ffmpeg version: %v", err)
		}
	}
	startup.LogFFmpegInit(ffmpegPath, found, ffmpegVersion, locator.Candidates())

	// Initialize handlers
	svc := fetcher.NewService(ext, locator, area, fetcher.Config{
		ExtractTimeout:   config.ExtractTimeout,
		DownloadTimeout:  config.DownloadTimeout,
		MaxConcurrent:    config.MaxConcurrentDownloads,
		DeleteAfterServe: config.DeleteAfterServe,
	})
	h := handlers.New(svc, area)

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      buildHandler(router, config),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	done := make(chan struct{})
	go handleShutdown(srv, metricsSrv, area, done)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}

	<-done
	return nil
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes
	r.HandleFunc("/api/fetch-formats", h.FetchFormats).Methods("GET")
	r.HandleFunc("/api/download", h.Download).Methods("POST")

	return r
}

// buildHandler wraps the router with compression, access logging and CORS.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	corsConfig := middleware.DefaultCORSConfig()
	if len(config.CORSAllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = config.CORSAllowedOrigins
	}
	handler := middleware.CORS(corsConfig)(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	return middleware.Compression(middleware.DefaultCompressionConfig())(handler)
}

// newMetricsServer serves metrics and the administrative endpoints. It has no
// CORS handling, so browsers on other origins cannot reach it.
func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	r.HandleFunc("/health", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/api/staging/clear", h.ClearStaging).Methods("POST")

	return &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, area *staging.Area, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping staging janitor")
	area.Stop()
	startup.LogShutdownStepComplete("Staging janitor stopped")

	if area.Owned() {
		startup.LogShutdownStep("Removing staging directory")
		area.Cleanup()
		startup.LogShutdownStepComplete("Staging directory removed")
	}

	startup.LogShutdownComplete()
}
