// Package metrics provides Prometheus instrumentation for the media-fetch service.
//
// All metrics are prefixed with "media_fetch_" and registered on the default
// registry through promauto, so they are exposed by promhttp.Handler().
//
// # Metric Categories
//
// HTTP metrics track request rate, latency and concurrency per route.
//
// Extractor metrics track yt-dlp invocations:
//   - ExtractorRunsTotal: invocations by operation (probe, fetch) and status
//   - ExtractorDuration: wall time per invocation
//
// Listing and download metrics track the two API operations, the number of
// formats returned per listing, bytes streamed and whether ffmpeg was found.
//
// Staging metrics track the size of the staging directory and how much the
// retention policy removes. Filesystem metrics count stale NFS handles on the
// staging volume and how the retries ended.
//
// Call [InitializeMetrics] at startup so labelled series exist before the first
// request arrives.
package metrics
