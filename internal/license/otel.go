package license

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	TracerName = "license-validator"
	MeterName  = "license-validator"
)

// LicenseMetrics holds the validator's OpenTelemetry instruments. A nil
// *LicenseMetrics records nothing.
type LicenseMetrics struct {
	ValidationAttempts metric.Int64Counter
	ValidationOutcomes metric.Int64Counter
	ValidationDuration metric.Float64Histogram
	CacheHits          metric.Int64Counter
	CacheMisses        metric.Int64Counter
	CacheWriteFailures metric.Int64Counter
	SignatureFailures  metric.Int64Counter
}

// InitializeLicenseMetrics creates the instruments on meter.
func InitializeLicenseMetrics(meter metric.Meter) (*LicenseMetrics, error) {
	metrics := &LicenseMetrics{}
	var err error

	metrics.ValidationAttempts, err = meter.Int64Counter(
		"license_validation_attempts_total",
		metric.WithDescription("Total number of license validation attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation attempts counter: %w", err)
	}

	metrics.ValidationOutcomes, err = meter.Int64Counter(
		"license_validation_outcomes_total",
		metric.WithDescription("License validation outcomes by origin and validity"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation outcomes counter: %w", err)
	}

	metrics.ValidationDuration, err = meter.Float64Histogram(
		"license_validation_duration_seconds",
		metric.WithDescription("License validation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation duration histogram: %w", err)
	}

	metrics.CacheHits, err = meter.Int64Counter(
		"license_offline_cache_hits_total",
		metric.WithDescription("Offline validations answered from a verified cache record"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	metrics.CacheMisses, err = meter.Int64Counter(
		"license_offline_cache_misses_total",
		metric.WithDescription("Offline validations without a usable cache record"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	metrics.CacheWriteFailures, err = meter.Int64Counter(
		"license_offline_cache_write_failures_total",
		metric.WithDescription("Online responses that could not be cached"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache write failures counter: %w", err)
	}

	metrics.SignatureFailures, err = meter.Int64Counter(
		"license_signature_failures_total",
		metric.WithDescription("Cached records rejected during authentication"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature failures counter: %w", err)
	}

	return metrics, nil
}

func (m *LicenseMetrics) recordValidation(ctx context.Context, duration time.Duration, o Outcome, failed bool) {
	if m == nil {
		return
	}
	m.ValidationAttempts.Add(ctx, 1)
	m.ValidationDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("origin", o.Origin.String())))
	m.ValidationOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("origin", o.Origin.String()),
		attribute.Bool("valid", o.Valid),
		attribute.Bool("error", failed),
	))
}

func (m *LicenseMetrics) recordCacheLookup(ctx context.Context, hit bool, reason string) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Add(ctx, 1)
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *LicenseMetrics) recordCacheWriteFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.CacheWriteFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *LicenseMetrics) recordSignatureFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.SignatureFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
