package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/keygen-sh/example-go-offline-validation-caching/internal/errors"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/infrastructure"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/license"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/middleware"
)

// MaxRetentionDays bounds the retention_days query parameter.
const MaxRetentionDays = 365

// LicenseService is the part of the validator the handlers use.
type LicenseService interface {
	Validate(ctx context.Context, licenseKey string) (license.Outcome, error)
	LastStatus() (license.Status, bool)
	Prune(ctx context.Context, retentionDays int) (int, error)
}

// ValidateRequest is the body of POST /api/license/validate.
type ValidateRequest struct {
	LicenseKey string `json:"license_key" validate:"required,licensekey"`
}

// Bind implements render.Binder.
func (v *ValidateRequest) Bind(r *http.Request) error {
	return nil
}

// ValidateResponse reports one validation.
type ValidateResponse struct {
	license.Outcome
	IsOnline  bool      `json:"is_online"`
	CheckedAt time.Time `json:"checked_at"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// StatusResponse reports the most recent validation.
type StatusResponse struct {
	license.Status
	IsOnline bool   `json:"is_online"`
	TraceID  string `json:"trace_id,omitempty"`
}

// PruneResponse reports a cache prune.
type PruneResponse struct {
	Removed       int    `json:"removed"`
	RetentionDays int    `json:"retention_days"`
	TraceID       string `json:"trace_id,omitempty"`
}

// LicenseHandler serves the license endpoints.
type LicenseHandler struct {
	service          LicenseService
	validation       *middleware.ValidationMiddleware
	query            *middleware.QueryParamValidator
	errors           *apierrors.ErrorHandler
	logger           *slog.Logger
	tracer           trace.Tracer
	defaultRetention int
}

// NewLicenseHandler creates a new license handler. defaultRetention is used
// when a prune request does not name one.
func NewLicenseHandler(service LicenseService, errorHandler *apierrors.ErrorHandler, logger *slog.Logger, defaultRetention int) *LicenseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultRetention < 1 {
		defaultRetention = 1
	}
	return &LicenseHandler{
		service:          service,
		validation:       middleware.NewValidationMiddleware(logger, errorHandler),
		query:            middleware.NewQueryParamValidator(errorHandler),
		errors:           errorHandler,
		logger:           logger.With(slog.String("handler", "license")),
		tracer:           otel.Tracer("license-handler"),
		defaultRetention: defaultRetention,
	}
}

// Routes returns a chi router for the license endpoints
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.GetStatus)
	r.With(
		middleware.ContentTypeValidator("application/json"),
		h.validation.ValidateRequest,
	).Post("/validate", h.Validate)
	r.Post("/cache/prune", h.PruneCache)

	return r
}

// GetStatus handles GET /api/license/status
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, ok := h.service.LastStatus()
	if !ok {
		h.errors.HandleError(w, r, apierrors.New(http.StatusNotFound, "NOT_FOUND", "No license validation has completed yet"))
		return
	}

	render.JSON(w, r, StatusResponse{
		Status:   status,
		IsOnline: status.Outcome.IsOnline(),
		TraceID:  infrastructure.GetTraceID(ctx),
	})
}

// Validate handles POST /api/license/validate
func (h *LicenseHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "license_handler.validate")
	defer span.End()
	r = r.WithContext(ctx)

	var req ValidateRequest
	if err := render.Bind(r, &req); err != nil {
		h.errors.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	outcome, err := h.service.Validate(ctx, req.LicenseKey)
	if err != nil {
		span.RecordError(err)
		h.errors.HandleError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("license.origin", outcome.Origin.String()),
		attribute.Bool("license.valid", outcome.Valid),
	)
	h.logger.InfoContext(ctx, "license validated via API",
		slog.String("origin", outcome.Origin.String()),
		slog.Bool("valid", outcome.Valid),
	)

	render.JSON(w, r, ValidateResponse{
		Outcome:   outcome,
		IsOnline:  outcome.IsOnline(),
		CheckedAt: time.Now().UTC(),
		TraceID:   infrastructure.GetTraceID(ctx),
	})
}

// PruneCache handles POST /api/license/cache/prune?retention_days=N
func (h *LicenseHandler) PruneCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	retention, ok := h.query.ValidateInt(w, r, "retention_days", 1, MaxRetentionDays, h.defaultRetention)
	if !ok {
		return
	}

	removed, err := h.service.Prune(ctx, retention)
	if errors.Is(err, license.ErrPruneUnsupported) {
		h.errors.HandleError(w, r, apierrors.New(http.StatusNotImplemented, "PRUNE_UNSUPPORTED", err.Error()))
		return
	}
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, PruneResponse{
		Removed:       removed,
		RetentionDays: retention,
		TraceID:       infrastructure.GetTraceID(ctx),
	})
}
