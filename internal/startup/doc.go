// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read through viper from environment variables, with
// command-line flags bound over them by the cmd package. [NewViper] returns an
// instance with every default registered and [LoadConfig] validates and logs
// the result. Supported variables:
//
//   - PORT: API server port (default: 5000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - STAGING_DIR: Where downloads are staged (default: a fresh ytdl_* temp dir)
//   - DELETE_AFTER_SERVE: Remove a download once it has been sent (default: true)
//   - STAGING_MAX_AGE: Age after which staged files are removed (default: 1h)
//   - STAGING_SWEEP_INTERVAL: How often expired files are looked for (default: 10m)
//   - EXTRACT_TIMEOUT: Limit for listing formats (default: 2m)
//   - DOWNLOAD_TIMEOUT: Limit for a single download (default: 30m)
//   - MAX_CONCURRENT_DOWNLOADS: Downloads allowed at once (default: 2 per CPU, at most 8)
//   - FFMPEG_PATH: Explicit ffmpeg executable, checked before the well-known locations
//   - YTDLP_PATH: Explicit yt-dlp executable (default: resolved from PATH)
//   - CORS_ALLOWED_ORIGINS: Comma-separated origins, or * (default: *)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogStagingInit]: Staging directory and retention policy
//   - [LogExtractorInit]: yt-dlp availability
//   - [LogFFmpegInit]: Where ffmpeg was found
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
