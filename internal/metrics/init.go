package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, op := range []string{"probe", "fetch"} {
		ExtractorRunsTotal.WithLabelValues(op, StatusSuccess)
		ExtractorRunsTotal.WithLabelValues(op, StatusError)
		ExtractorDuration.WithLabelValues(op)
	}

	for _, status := range []string{StatusSuccess, StatusClientError, StatusError} {
		FormatListingsTotal.WithLabelValues(status)
		DownloadsTotal.WithLabelValues(status)
	}

	for _, reason := range []string{"served", "expired", "cleared", "failed"} {
		StagingRemovedTotal.WithLabelValues(reason)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetriesTotal.WithLabelValues(op, StatusSuccess)
		FilesystemRetriesTotal.WithLabelValues(op, StatusError)
	}
}
