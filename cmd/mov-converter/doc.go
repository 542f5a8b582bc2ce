// Package main provides the entry point for the MOV to MP4 converter.
//
// The converter is a small web service: a user uploads a QuickTime (.mov)
// file through a form, ffmpeg re-encodes it to H.264/AAC in an MP4
// container, and the result is offered as a download named
// converted_video.mp4. Uploaded and converted files only touch disk for the
// duration of a single request.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads .env and environment variables, checks the work directory
//  2. Component Initialization:
//     - Converter: Locates ffmpeg and records its version (warning only)
//     - Workspace: Removes job directories left behind by a previous crash
//     - Preview: Poster-frame generator (optional)
//     - Downloads: In-memory store for finished conversions, swept every minute
//  3. HTTP Server Setup: Configures routes, middleware, and starts servers
//  4. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - Upload page and result page
//     - Download links for finished conversions
//     - POST /api/convert for scripted use
//     - Health, readiness and version endpoints
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests (30s timeout for in-flight ones)
//  2. Kill any ffmpeg processes still running
//  3. Stop the download sweeper and release held files
//  4. Shutdown metrics server (if running)
//
// # Related Packages
//
//   - [mov-converter/internal/converter]: ffmpeg invocation
//   - [mov-converter/internal/gateway]: Per-request conversion lifecycle
//   - [mov-converter/internal/handlers]: HTTP request handlers
//   - [mov-converter/internal/middleware]: HTTP middleware (logging, metrics, compression)
//   - [mov-converter/internal/startup]: Configuration and initialization
package main
