// Package middleware provides HTTP middleware for the converter.
//
// It includes:
//   - Request IDs (X-Request-ID) for correlating access and application logs
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labeled by route template
//   - Response compression (gzip) for pages and JSON; video streams through
//     untouched
package middleware
