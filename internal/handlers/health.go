package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-fetch/internal/logging"
	"media-fetch/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status          string `json:"status"`
	Ready           bool   `json:"ready"`
	Version         string `json:"version"`
	Uptime          string `json:"uptime"`
	FFmpegAvailable bool   `json:"ffmpegAvailable"`
	StagingError    string `json:"stagingError,omitempty"`

	// Staging usage
	StagingDir   string `json:"stagingDir"`
	StagingBytes int64  `json:"stagingBytes"`
	StagingFiles int    `json:"stagingFiles"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. Missing ffmpeg does
// not make the service unhealthy: muxed formats can still be served.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:          statusHealthy,
		Ready:           true,
		Version:         startup.Version,
		Uptime:          time.Since(h.startTime).Round(time.Second).String(),
		FFmpegAvailable: h.fetcher.FFmpegAvailable(),
		StagingDir:      h.staging.Root(),
		GoVersion:       runtime.Version(),
		NumCPU:          runtime.NumCPU(),
		NumGoroutine:    runtime.NumGoroutine(),
	}

	if size, files, err := h.staging.Usage(); err != nil {
		logging.Warn("Failed to measure staging area: %v", err)
	} else {
		response.StagingBytes = size
		response.StagingFiles = files
	}

	if err := h.staging.Writable(); err != nil {
		response.Status = statusDegraded
		response.Ready = false
		response.StagingError = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")

	if !response.Ready {
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

// ReadinessCheck returns 200 only when downloads can be staged.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if err := h.staging.Writable(); err != nil {
		logging.Warn("Readiness check failed: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
		return
	}

	writeJSONStatus(w, "ready")
}
