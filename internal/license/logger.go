package license

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/infrastructure"
)

const component = "license_validator"

// maskLicenseKey masks the license key for logs
func maskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// hashLicenseKey creates a short hash of the license key for correlating
// log lines and spans without exposing the key.
func hashLicenseKey(key string) string {
	if key == "" {
		return ""
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])[:16]
}

// logAction logs a validation step with the standard attributes.
func logAction(ctx context.Context, logger *slog.Logger, level slog.Level, action, result string, attrs ...slog.Attr) {
	all := make([]slog.Attr, 0, len(attrs)+4)
	all = append(all,
		slog.String("component", component),
		slog.String("action", action),
		slog.String("result", result),
	)
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		all = append(all, slog.String("trace_id", traceID))
	}
	all = append(all, attrs...)
	logger.LogAttrs(ctx, level, result, all...)
}

func keyAttrs(licenseKey string) []slog.Attr {
	return []slog.Attr{
		slog.String("license_key_masked", maskLicenseKey(licenseKey)),
		slog.String("license_key_hash", hashLicenseKey(licenseKey)),
	}
}
