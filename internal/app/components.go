package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/authority"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/config"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/infrastructure"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/license"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/offline"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/signature"
)

const redisPingTimeout = 3 * time.Second

// OpenStore opens the cache backend named by cfg.Cache.Backend. The returned
// close function releases backend resources and is never nil.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (offline.Store, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() error { return nil }

	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		return offline.NewMemoryStore(), noop, nil

	case config.CacheBackendRedis:
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Store faults degrade to cache misses, so an unreachable redis
			// is not fatal.
			logger.WarnContext(ctx, "redis cache unreachable at startup",
				slog.String("addr", opts.Addr),
				slog.String("error", err.Error()))
		}

		store := offline.NewRedisStore(client,
			offline.WithRedisPrefix(cfg.Cache.RedisPrefix),
			offline.WithRedisTTL(cfg.Cache.RedisTTL),
			offline.WithRedisLogger(logger),
		)
		return store, client.Close, nil

	case config.CacheBackendFile, "":
		paths, err := cfg.ResolvePaths()
		if err != nil {
			return nil, nil, err
		}
		if err := paths.EnsureDirectories(false); err != nil {
			return nil, nil, err
		}
		store, err := offline.NewFileStore(paths.CacheDir, offline.WithFileLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache directory: %w", err)
		}
		return store, noop, nil

	default:
		return nil, nil, fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
}

// Components groups what NewValidator builds.
type Components struct {
	Verifier  signature.Verifier
	Client    *authority.Client
	Metrics   *license.LicenseMetrics
	Validator *license.Validator
}

// NewValidator builds the verifier, authority client and validator for cfg.
// providers may be nil, in which case no metrics are recorded. Unparsable
// key material is reported as apperrors.ErrInvalidKeyMaterial.
func NewValidator(cfg *config.Config, store offline.Store, logger *slog.Logger, providers *infrastructure.OTelProviders) (*Components, error) {
	scheme, err := signature.ParseScheme(cfg.Scheme)
	if err != nil {
		return nil, err
	}

	verifier, err := signature.New(signature.Config{
		Scheme:    scheme,
		PublicKey: cfg.PublicKey,
		VerifyKey: cfg.VerifyKey,
		AccountID: cfg.AccountID,
		Host:      cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s verifier: %w", scheme, err)
	}

	client, err := authority.NewClient(authority.ConfigFrom(cfg), authority.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create authority client: %w", err)
	}

	opts := []license.Option{license.WithLogger(logger)}
	var metrics *license.LicenseMetrics
	if providers != nil {
		metrics, err = license.InitializeLicenseMetrics(providers.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize license metrics: %w", err)
		}
		opts = append(opts, license.WithMetrics(metrics), license.WithTracer(providers.Tracer))
	}

	auth := license.NewAuthenticator(verifier, logger, metrics)

	return &Components{
		Verifier:  verifier,
		Client:    client,
		Metrics:   metrics,
		Validator: license.NewValidator(client, store, auth, opts...),
	}, nil
}
