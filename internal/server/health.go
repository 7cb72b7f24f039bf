package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker provides health check endpoints for probes.
type HealthChecker struct {
	shuttingDown atomic.Bool
	startTime    time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startTime: time.Now()}
}

// SetShuttingDown marks the process as draining.
func (h *HealthChecker) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

// IsReady returns whether the process still accepts work.
func (h *HealthChecker) IsReady() bool {
	return !h.shuttingDown.Load()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime,omitempty"`
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !h.IsReady() {
			writeHealth(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusShuttingDown})
			return
		}
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed
// endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response := HealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		status := http.StatusOK
		if !h.IsReady() {
			response.Status = healthStatusShuttingDown
			status = http.StatusServiceUnavailable
		}
		writeHealth(w, status, response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeHealth(w http.ResponseWriter, status int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
