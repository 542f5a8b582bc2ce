package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mov_converter"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Total number of conversions by outcome",
		},
		[]string{"status"}, // "success", "engine_error", "timeout", "engine_unavailable", "canceled"
	)

	ConversionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Time spent waiting for the transcoding engine",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	ConversionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversions_in_progress",
			Help:      "Number of engine processes currently running",
		},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of uploaded MOV files",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 10), // 64KB .. 16GB
		},
	)

	OutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "output_size_bytes",
			Help:      "Size of converted MP4 files",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 10),
		},
	)

	PreviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "previews_total",
			Help:      "Poster frame generations by status",
		},
		[]string{"status"},
	)
)

// Download metrics
var (
	DownloadsHeld = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_held",
			Help:      "Number of converted results held in memory awaiting download",
		},
	)

	DownloadsHeldBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_held_bytes",
			Help:      "Total size of converted results held in memory",
		},
	)

	DownloadsServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_served_total",
			Help:      "Download requests by result",
		},
		[]string{"status"}, // "ok", "not_found", "error"
	)
)

// Workspace metrics
var (
	WorkspaceCleanupErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workspace_cleanup_errors_total",
			Help:      "Temp file removals that failed for a reason other than the file being missing",
		},
	)

	WorkspaceSweptJobs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workspace_swept_jobs_total",
			Help:      "Stale job directories removed by the startup sweep",
		},
	)
)

// Authentication metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Total number of basic-auth attempts",
		},
		[]string{"status"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_info",
			Help:      "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
