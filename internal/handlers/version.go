package handlers

import (
	"net/http"

	"mov-converter/internal/startup"
)

// VersionResponse is the build info plus the detected engine version.
type VersionResponse struct {
	startup.BuildInfo
	FFmpeg string `json:"ffmpeg,omitempty"`
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, VersionResponse{
		BuildInfo: startup.GetBuildInfo(),
		FFmpeg:    h.engine.EngineVersion(),
	})
}
