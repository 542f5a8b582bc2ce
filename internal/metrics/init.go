package metrics

// ConversionStatuses lists every status label used by ConversionsTotal.
var ConversionStatuses = []string{"success", "engine_error", "timeout", "engine_unavailable", "canceled"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range ConversionStatuses {
		ConversionsTotal.WithLabelValues(status)
	}

	for _, status := range []string{"ok", "not_found", "error"} {
		DownloadsServedTotal.WithLabelValues(status)
	}

	for _, status := range []string{"success", "failure", "skipped"} {
		PreviewsTotal.WithLabelValues(status)
	}

	for _, status := range []string{"success", "failure"} {
		AuthAttemptsTotal.WithLabelValues(status)
	}
}
