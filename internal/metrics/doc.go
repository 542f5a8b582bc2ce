// Package metrics declares the Prometheus metrics exported by the converter.
//
// Metrics are registered with the default registry through promauto and are
// served by the dedicated metrics server (METRICS_PORT, default 9090).
//
// Metric families:
//   - HTTP: request counts, latencies and in-flight requests
//   - Conversions: jobs by outcome, engine duration, in-progress jobs
//   - Payloads: upload and output sizes
//   - Downloads: results held in memory and downloads served
//   - Workspace: temp file cleanup failures and swept job directories
//   - Auth: basic-auth attempts
//   - App info: version and build labels
package metrics
