package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/keygen-sh/example-go-offline-validation-caching/internal/errors"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/infrastructure"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/offline"
)

// ErrPruneUnsupported is returned by Prune when the store cannot prune.
var ErrPruneUnsupported = errors.New("cache store does not support pruning")

// cacheReadTimeout bounds the offline cache read, which ignores caller cancellation.
const cacheReadTimeout = 2 * time.Second

// Validator runs the online-then-offline validation flow.
type Validator struct {
	transport Transport
	store     offline.Store
	auth      *Authenticator

	clock   func() time.Time
	logger  *slog.Logger
	metrics *LicenseMetrics
	tracer  trace.Tracer

	group singleflight.Group

	mu   sync.RWMutex
	last *Status
}

// Status is the most recent outcome seen by a Validator.
type Status struct {
	Outcome   Outcome   `json:"outcome"`
	KeyHash   string    `json:"license_key_hash"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the clock used for cache keys. The cache day follows the
// location of the returned time.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithMetrics enables metric recording.
func WithMetrics(metrics *LicenseMetrics) Option {
	return func(v *Validator) {
		v.metrics = metrics
	}
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(v *Validator) {
		if tracer != nil {
			v.tracer = tracer
		}
	}
}

// NewValidator wires a Validator.
func NewValidator(transport Transport, store offline.Store, auth *Authenticator, opts ...Option) *Validator {
	v := &Validator{
		transport: transport,
		store:     store,
		auth:      auth,
		clock:     time.Now,
		logger:    slog.Default(),
		tracer:    otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks licenseKey and always returns an outcome. The error is
// non-nil only for hard failures, which come with an unavailable outcome:
// an empty key, a non-connectivity transport error, or an undecodable
// authority response. Concurrent calls for the same key share one result.
func (v *Validator) Validate(ctx context.Context, licenseKey string) (Outcome, error) {
	if strings.TrimSpace(licenseKey) == "" {
		return Unavailable(), apperrors.ErrEmptyLicenseKey
	}

	res, err, shared := v.group.Do(licenseKey, func() (any, error) {
		o, err := v.validate(ctx, licenseKey)
		return o, err
	})
	if shared {
		logAction(ctx, v.logger, slog.LevelDebug, "validate", "joined in-flight validation", keyAttrs(licenseKey)...)
	}
	outcome, _ := res.(Outcome)
	return outcome, err
}

func (v *Validator) validate(ctx context.Context, licenseKey string) (Outcome, error) {
	ctx, span := v.tracer.Start(ctx, "license.validation",
		trace.WithAttributes(
			attribute.String("license.key_hash", hashLicenseKey(licenseKey)),
			attribute.String("license.scheme", string(v.auth.Scheme())),
		),
	)
	defer span.End()

	start := time.Now()
	outcome, err := v.run(ctx, licenseKey)
	duration := time.Since(start)

	v.metrics.recordValidation(ctx, duration, outcome, err != nil)
	v.remember(licenseKey, outcome, err)

	span.SetAttributes(
		attribute.String("license.origin", outcome.Origin.String()),
		attribute.Bool("license.valid", outcome.Valid),
		attribute.String("license.code", outcome.Code),
	)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case outcome.Origin == OriginUnavailable:
		span.SetStatus(codes.Error, "license validation unavailable")
	default:
		span.SetStatus(codes.Ok, "")
	}

	attrs := append(keyAttrs(licenseKey),
		slog.String("origin", outcome.Origin.String()),
		slog.Bool("valid", outcome.Valid),
		slog.String("code", outcome.Code),
		slog.Duration("duration", duration),
	)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		logAction(ctx, v.logger, slog.LevelError, "validate", "license validation failed", attrs...)
	} else {
		logAction(ctx, v.logger, slog.LevelInfo, "validate", "license validation completed", attrs...)
	}
	return outcome, err
}

func (v *Validator) run(ctx context.Context, licenseKey string) (Outcome, error) {
	resp, err := v.transport.Validate(ctx, licenseKey)
	switch {
	case err == nil && resp == nil:
		return Unavailable(), fmt.Errorf("%w: transport returned no response", apperrors.ErrMalformedResponse)
	case err == nil:
		return v.online(ctx, resp)
	case errors.Is(err, apperrors.ErrConnectivity):
		logAction(ctx, v.logger, slog.LevelWarn, "validate", "authority unreachable, using offline cache",
			slog.String("error", err.Error()))
		return v.offline(ctx, licenseKey), nil
	default:
		return Unavailable(), fmt.Errorf("license validation request failed: %w", err)
	}
}

func (v *Validator) online(ctx context.Context, resp *Response) (Outcome, error) {
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return Unavailable(), err
	}
	if doc.rejected() {
		return doc.rejection(), nil
	}

	v.cache(ctx, resp, doc.licenseKey())
	return doc.outcome(OriginOnline), nil
}

// cache stores resp for today. Failures are logged and otherwise ignored.
// Answers that name no license key are not stored.
func (v *Validator) cache(ctx context.Context, resp *Response, issuedFor string) {
	now := v.clock()
	key := offline.DayKey(now)

	if issuedFor == "" {
		v.metrics.recordCacheWriteFailure(ctx, "no_license_key")
		logAction(ctx, v.logger, slog.LevelWarn, "cache_write", "response not cached",
			slog.String("cache_key", key),
			slog.String("error", "response names no license key"))
		return
	}

	rec, err := v.auth.Capture(resp, now)
	if err != nil {
		v.metrics.recordCacheWriteFailure(ctx, "no_proof")
		logAction(ctx, v.logger, slog.LevelWarn, "cache_write", "response not cached",
			slog.String("cache_key", key),
			slog.String("error", err.Error()))
		return
	}

	// The answer is already in hand; a cancelled caller should not lose it.
	if err := v.store.Write(context.WithoutCancel(ctx), key, rec); err != nil {
		v.metrics.recordCacheWriteFailure(ctx, "store")
		logAction(ctx, v.logger, slog.LevelWarn, "cache_write", "cache write failed",
			slog.String("cache_key", key),
			slog.String("error", err.Error()))
		return
	}

	infrastructure.AddSpanEvent(ctx, "license.cache.written", attribute.String("cache_key", key))
	logAction(ctx, v.logger, slog.LevelDebug, "cache_write", "response cached", slog.String("cache_key", key))
}

func (v *Validator) offline(ctx context.Context, licenseKey string) Outcome {
	key := offline.DayKey(v.clock())

	// The fallback often runs because the caller's deadline expired.
	readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheReadTimeout)
	defer cancel()

	rec, ok := v.store.Read(readCtx, key)
	if !ok {
		v.metrics.recordCacheLookup(ctx, false, "absent")
		logAction(ctx, v.logger, slog.LevelWarn, "cache_read", "no cached record for today",
			slog.String("cache_key", key))
		return Unavailable()
	}

	outcome, ok := v.auth.Authenticate(ctx, rec, licenseKey)
	if !ok {
		v.metrics.recordCacheLookup(ctx, false, "unverified")
		return Unavailable()
	}

	v.metrics.recordCacheLookup(ctx, true, "")
	return outcome
}

func (v *Validator) remember(licenseKey string, outcome Outcome, err error) {
	status := &Status{
		Outcome:   outcome,
		KeyHash:   hashLicenseKey(licenseKey),
		CheckedAt: v.clock(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	v.mu.Lock()
	v.last = status
	v.mu.Unlock()
}

// LastStatus returns the most recent validation, if any.
func (v *Validator) LastStatus() (Status, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.last == nil {
		return Status{}, false
	}
	return *v.last, true
}

// Prune removes cached records older than retentionDays, counting today as
// the first day kept.
func (v *Validator) Prune(ctx context.Context, retentionDays int) (int, error) {
	pruner, ok := v.store.(offline.Pruner)
	if !ok {
		return 0, ErrPruneUnsupported
	}
	if retentionDays < 1 {
		retentionDays = 1
	}
	cutoff := v.clock().AddDate(0, 0, -(retentionDays - 1))

	removed, err := pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		logAction(ctx, v.logger, slog.LevelError, "cache_prune", "cache prune failed",
			slog.String("error", err.Error()))
		return removed, fmt.Errorf("failed to prune cache: %w", err)
	}
	logAction(ctx, v.logger, slog.LevelInfo, "cache_prune", "cache pruned",
		slog.Int("removed", removed),
		slog.String("cutoff", offline.DayKey(cutoff)))
	return removed, nil
}
