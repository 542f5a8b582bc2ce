// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig]. A .env
// file in the working directory, if present, is loaded first; variables
// already set in the environment take precedence over it.
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - WORK_DIR: Directory for per-request temp files (default: $TMPDIR/mov-converter)
//   - FFMPEG_PATH: ffmpeg binary (default: ffmpeg)
//   - FFPROBE_PATH: ffprobe binary (default: ffprobe)
//   - CONVERT_TIMEOUT: Maximum conversion time as Go duration, 0 for none (default: 30m)
//   - DOWNLOAD_TTL: How long a converted file stays downloadable (default: 10m)
//   - PREVIEW_ENABLED: Render a poster frame on the result page (default: true)
//   - AUTH_PASSWORD_HASH: bcrypt hash enabling HTTP basic auth (default: unset)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// MEMORY_LIMIT and MEMORY_RATIO are read by the memory package.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	version, err := conv.CheckEngine(ctx)
//	startup.LogConverterInit(version, err)
//
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
package startup
