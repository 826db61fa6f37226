package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/infrastructure"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/offline"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/signature"
	"go.opentelemetry.io/otel/attribute"
)

// Authenticator turns cache records into outcomes, but only when their
// proof verifies under the trusted key. It also captures the proof of live
// responses so they can be cached.
type Authenticator struct {
	verifier signature.Verifier
	logger   *slog.Logger
	metrics  *LicenseMetrics
}

// NewAuthenticator creates an Authenticator around verifier.
func NewAuthenticator(verifier signature.Verifier, logger *slog.Logger, metrics *LicenseMetrics) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{verifier: verifier, logger: logger, metrics: metrics}
}

// Scheme returns the scheme of the underlying verifier.
func (a *Authenticator) Scheme() signature.Scheme {
	return a.verifier.Scheme()
}

// Capture builds a cache record from a live response. It fails when the
// response carries no proof for the configured scheme.
func (a *Authenticator) Capture(resp *Response, now time.Time) (offline.Record, error) {
	if resp == nil || len(resp.Body) == 0 {
		return offline.Record{}, fmt.Errorf("%w: empty response", signature.ErrMissingPrecondition)
	}
	proof, err := a.verifier.ExtractProof(resp.Header)
	if err != nil {
		return offline.Record{}, err
	}
	return offline.Record{
		Scheme:   a.verifier.Scheme(),
		Proof:    proof,
		Body:     resp.Body,
		StoredAt: now,
	}, nil
}

// Authenticate verifies rec and returns its outcome tagged OriginOffline.
// It returns false for any record that cannot be trusted; callers must not
// distinguish between the reasons. When licenseKey is set, a record must
// name that same key; one naming another key or no key is not trusted.
func (a *Authenticator) Authenticate(ctx context.Context, rec offline.Record, licenseKey string) (Outcome, bool) {
	if rec.Scheme != "" && rec.Scheme != a.verifier.Scheme() {
		a.reject(ctx, "scheme_mismatch", fmt.Errorf("%w: record %s, verifier %s",
			signature.ErrSchemeMismatch, rec.Scheme, a.verifier.Scheme()))
		return Outcome{}, false
	}

	if err := a.verifier.Verify(rec.Proof, rec.Body); err != nil {
		a.reject(ctx, signature.FailureReason(err), err)
		return Outcome{}, false
	}

	doc, err := parseDocument(rec.Body)
	if err != nil {
		a.reject(ctx, "malformed_body", err)
		return Outcome{}, false
	}
	if doc.rejected() || doc.Meta == nil {
		a.reject(ctx, "not_a_result", errors.New("cached document carries no validation result"))
		return Outcome{}, false
	}
	if stored := doc.licenseKey(); licenseKey != "" && stored != licenseKey {
		a.reject(ctx, "license_key_mismatch", errors.New("cached document was issued for another license key"))
		return Outcome{}, false
	}

	infrastructure.AddSpanEvent(ctx, "license.cache.verified",
		attribute.String("scheme", string(a.verifier.Scheme())))
	return doc.outcome(OriginOffline), true
}

func (a *Authenticator) reject(ctx context.Context, reason string, err error) {
	a.metrics.recordSignatureFailure(ctx, reason)
	infrastructure.AddSpanEvent(ctx, "license.cache.rejected", attribute.String("reason", reason))
	logAction(ctx, a.logger, slog.LevelWarn, "authenticate", "cached record rejected",
		slog.String("reason", reason),
		slog.String("error", err.Error()))
}
