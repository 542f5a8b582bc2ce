package handlers

import (
	"net/http"
	"runtime"
	"time"

	"mov-converter/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	EngineAvailable   bool   `json:"engineAvailable"`
	EngineVersion     string `json:"engineVersion,omitempty"`
	WorkspaceError    string `json:"workspaceError,omitempty"`
	ActiveConversions int    `json:"activeConversions"`
	DownloadsHeld     int    `json:"downloadsHeld"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// ready reports whether conversions can currently succeed.
func (h *Handlers) ready() (bool, error) {
	wsErr := h.workspace.CheckWritable()
	return h.engine.Available() && wsErr == nil, wsErr
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	ready, wsErr := h.ready()

	response := HealthResponse{
		Status:            statusHealthy,
		Ready:             ready,
		Version:           startup.Version,
		Uptime:            time.Since(h.startTime).Round(time.Second).String(),
		EngineAvailable:   h.engine.Available(),
		EngineVersion:     h.engine.EngineVersion(),
		ActiveConversions: h.engine.ActiveCount(),
		DownloadsHeld:     h.downloads.Len(),
		GoVersion:         runtime.Version(),
		NumCPU:            runtime.NumCPU(),
		NumGoroutine:      runtime.NumGoroutine(),
	}
	if wsErr != nil {
		response.WorkspaceError = wsErr.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		response.Status = statusDegraded
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when ffmpeg was found and the work
// directory is writable.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if ok, _ := h.ready(); ok {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
