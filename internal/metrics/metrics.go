package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_fetch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetch_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Extractor metrics
var (
	// ExtractorRunsTotal counts yt-dlp invocations by operation ("probe", "fetch")
	// and outcome ("success", "error").
	ExtractorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetch_extractor_runs_total",
			Help: "Total number of extractor invocations",
		},
		[]string{"operation", "status"},
	)

	ExtractorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_fetch_extractor_duration_seconds",
			Help:    "Extractor invocation duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900, 1800},
		},
		[]string{"operation"},
	)
)

// Format listing and download metrics
var (
	FormatListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetch_format_listings_total",
			Help: "Total number of format listing requests by outcome",
		},
		[]string{"status"},
	)

	FormatsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_fetch_formats_returned",
			Help:    "Number of formats returned per listing after filtering and deduplication",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetch_downloads_total",
			Help: "Total number of download requests by outcome",
		},
		[]string{"status"},
	)

	DownloadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetch_downloads_in_flight",
			Help: "Number of downloads currently holding a download slot",
		},
	)

	BytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetch_bytes_served_total",
			Help: "Total number of media bytes streamed to clients",
		},
	)

	FFmpegAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetch_ffmpeg_available",
			Help: "Whether ffmpeg was located on the last lookup (1 = found, 0 = missing)",
		},
	)
)

// Staging metrics
var (
	StagingSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetch_staging_size_bytes",
			Help: "Total size of files in the staging directory",
		},
	)

	StagingFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetch_staging_files",
			Help: "Number of files in the staging directory",
		},
	)

	StagingRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetch_staging_removed_total",
			Help: "Total number of staged job directories removed, by reason",
		},
		[]string{"reason"}, // "served", "expired", "cleared", "failed"
	)

	StagingFreedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_fetch_staging_freed_bytes_total",
			Help: "Total number of bytes freed from the staging directory",
		},
	)
)

// Filesystem metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetch_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors seen on the staging filesystem",
		},
		[]string{"operation"}, // "stat", "open"
	)

	FilesystemRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetch_filesystem_retries_total",
			Help: "Total number of retried filesystem operations, by final outcome",
		},
		[]string{"operation", "status"},
	)
)

// Runtime metrics
var (
	GoMemLimitBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_fetch_go_memory_limit_bytes",
			Help: "GOMEMLIMIT configured at startup (0 = not set)",
		},
	)
)

// Outcome labels shared by the counters above.
const (
	StatusSuccess     = "success"
	StatusClientError = "client_error"
	StatusError       = "error"
)
