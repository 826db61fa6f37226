package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/infrastructure"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/license"
)

// revalidateLoop validates the configured license key at startup and then
// every RevalidateInterval. An interval of zero validates once.
func (a *Application) revalidateLoop(ctx context.Context) {
	if a.Config.LicenseKey == "" {
		return
	}

	a.revalidate(ctx)
	if a.Config.RevalidateInterval <= 0 {
		return
	}

	ticker := time.NewTicker(a.Config.RevalidateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.revalidate(ctx)
		}
	}
}

func (a *Application) revalidate(ctx context.Context) {
	ctx = infrastructure.ContextWithTraceID(ctx)
	outcome, err := a.Validator.Validate(ctx, a.Config.LicenseKey)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.Logger.ErrorContext(ctx, "scheduled revalidation failed", slog.String("error", err.Error()))
		return
	}

	level := slog.LevelInfo
	if !outcome.Valid {
		level = slog.LevelWarn
	}
	a.Logger.Log(ctx, level, "scheduled revalidation",
		slog.Bool("valid", outcome.Valid),
		slog.String("code", outcome.Code),
		slog.String("origin", outcome.Origin.String()))
}

// pruneLoop removes records older than the retention window at startup and
// then every pruneInterval. It stops when the store cannot prune.
func (a *Application) pruneLoop(ctx context.Context) {
	if !a.prune(ctx) {
		return
	}

	ticker := time.NewTicker(a.pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.prune(ctx) {
				return
			}
		}
	}
}

func (a *Application) prune(ctx context.Context) bool {
	removed, err := a.Validator.Prune(ctx, a.Config.Cache.RetentionDays)
	switch {
	case errors.Is(err, license.ErrPruneUnsupported):
		a.Logger.DebugContext(ctx, "cache pruning disabled", slog.String("reason", err.Error()))
		return false
	case err != nil:
		if ctx.Err() == nil {
			a.Logger.WarnContext(ctx, "cache prune failed", slog.String("error", err.Error()))
		}
		return true
	}
	if removed > 0 {
		a.Logger.InfoContext(ctx, "cache pruned",
			slog.Int("removed", removed),
			slog.Int("retention_days", a.Config.Cache.RetentionDays))
	}
	return true
}
