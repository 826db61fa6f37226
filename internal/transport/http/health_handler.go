package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/license"
)

// StatusProvider exposes the most recent validation.
type StatusProvider interface {
	LastStatus() (license.Status, bool)
}

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	License   string    `json:"license"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	status  StatusProvider
	version string
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(status StatusProvider, version string, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		status:  status,
		version: version,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "health")),
	}
}

func (h *HealthHandler) response(status string) HealthResponse {
	origin := "unknown"
	if last, ok := h.status.LastStatus(); ok {
		origin = last.Outcome.Origin.String()
	}
	return HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		License:   origin,
		Timestamp: time.Now().UTC(),
	}
}

// LivenessCheck handles GET /healthz
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.response("ok"))
}

// ReadinessCheck handles GET /readyz. The agent is ready once a validation
// has produced an answer, online or from the verified cache.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	last, ok := h.status.LastStatus()
	if !ok || last.Outcome.Origin == license.OriginUnavailable {
		h.logger.DebugContext(r.Context(), "readiness check failed", slog.Bool("validated", ok))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, h.response("unavailable"))
		return
	}
	render.JSON(w, r, h.response("ready"))
}
