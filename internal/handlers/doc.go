// Package handlers provides the HTTP handlers for the converter.
//
// It includes handlers for:
//   - The upload page and form-based conversion with an HTML result page
//   - Downloading converted files by token
//   - A JSON/binary API for scripted conversions
//   - Health, readiness and version checks
//   - Optional HTTP basic auth
package handlers
