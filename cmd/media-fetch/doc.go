// Package main provides the entry point for the media-fetch service.
//
// media-fetch is an HTTP API that lists the downloadable formats of a remote
// video URL and serves a merged file in one of those formats. Extraction is
// delegated to yt-dlp and stream merging to ffmpeg.
//
// # Commands
//
//   - media-fetch, media-fetch serve: start the API (and the metrics server)
//   - media-fetch version: print build information
//   - media-fetch locate: print the ffmpeg executable the server would use
//
// # Application Lifecycle
//
//  1. Configuration Loading: environment variables through viper, overridden
//     by the --port, --metrics-port and --staging-dir flags
//  2. Staging Area: opens STAGING_DIR or creates a temporary directory, then
//     starts the janitor that expires old downloads
//  3. Tool Discovery: logs the yt-dlp version and where ffmpeg was found
//  4. HTTP Server Setup: routes, CORS, access logging, compression, metrics
//  5. Graceful Shutdown: on SIGINT/SIGTERM the servers drain, the janitor
//     stops and a temporary staging directory is removed
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 5000):
//     - GET  /api/fetch-formats?url=...
//     - POST /api/download
//     - /health, /healthz, /livez, /readyz, /version
//
//  2. Metrics Server (default port 9090, optional, no CORS):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//     - POST /api/staging/clear, kept off the main server so other origins
//       cannot trigger it
//
// # Environment Variables
//
//   - PORT: Main HTTP server port (default: 5000)
//   - METRICS_PORT: Metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable metrics server (default: true)
//   - STAGING_DIR: Directory downloads are staged in (default: temporary)
//   - DELETE_AFTER_SERVE: Remove a download once it has been sent (default: true)
//   - STAGING_MAX_AGE: Age after which staged downloads expire (default: 1h)
//   - STAGING_SWEEP_INTERVAL: Janitor interval (default: 10m)
//   - EXTRACT_TIMEOUT: Limit for format listing (default: 2m)
//   - DOWNLOAD_TIMEOUT: Limit for a download (default: 30m)
//   - MAX_CONCURRENT_DOWNLOADS: Concurrent downloads (default: CPU based, at most 8)
//   - FFMPEG_PATH: ffmpeg executable, searched for when unset
//   - YTDLP_PATH: yt-dlp executable, looked up on PATH when unset
//   - CORS_ALLOWED_ORIGINS: Comma separated origins (default: *)
//   - LOG_HEALTH_CHECKS: Include health probes in the access log (default: true)
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//
// # Related Packages
//
//   - [media-fetch/internal/fetcher]: format listing and download orchestration
//   - [media-fetch/internal/extractor]: yt-dlp integration
//   - [media-fetch/internal/ffmpeg]: ffmpeg discovery
//   - [media-fetch/internal/staging]: download staging and retention
//   - [media-fetch/internal/handlers]: HTTP request handlers
//   - [media-fetch/internal/middleware]: HTTP middleware
//   - [media-fetch/internal/startup]: configuration and startup logging
package main
