package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/config"
	apierrors "github.com/keygen-sh/example-go-offline-validation-caching/internal/errors"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/infrastructure"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/license"
	customMiddleware "github.com/keygen-sh/example-go-offline-validation-caching/internal/middleware"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/offline"
	handlers "github.com/keygen-sh/example-go-offline-validation-caching/internal/transport/http"
)

// DefaultPruneInterval is how often the cache is pruned.
const DefaultPruneInterval = 24 * time.Hour

// Application represents the license agent
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Store         offline.Store
	Validator     *license.Validator
	Router        *chi.Mux
	Server        *http.Server

	errorHandler  *apierrors.ErrorHandler
	closeStore    func() error
	pruneInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication loads configuration from the environment and builds the
// application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	return New(cfg, logger, providers)
}

// New builds the application from already loaded parts. providers may be
// nil, in which case telemetry is disabled.
func New(cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	ctx := context.Background()

	logger.InfoContext(ctx, "application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("scheme", cfg.Scheme),
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.String("authority", cfg.AuthorityURL()))

	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	components, err := NewValidator(cfg, store, logger, providers)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Store:         store,
		Validator:     components.Validator,
		errorHandler:  apierrors.NewErrorHandler(logger, false),
		closeStore:    closeStore,
		pruneInterval: DefaultPruneInterval,
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// setupRouter configures routes and middleware.
// Ordering: RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	if a.OTelProviders != nil {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}
	}
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.errorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	health := handlers.NewHealthHandler(a.Validator, config.AppVersion, a.Logger)
	r.Get("/healthz", health.LivenessCheck)
	r.Get("/readyz", health.ReadinessCheck)

	var prom http.Handler
	if a.OTelProviders != nil {
		prom = a.OTelProviders.PrometheusHTTP
	}
	r.Mount("/metrics", handlers.NewMetricsHandler(prom).Routes())

	r.Route("/api", func(r chi.Router) {
		if a.Config.Server.RateLimitRPS > 0 {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Server.RateLimitRPS,
				a.Config.Server.RateLimitBurst,
				a.Logger,
			).Handler)
		}
		r.Use(apierrors.NewErrorMiddleware(a.errorHandler, a.Logger).Handler)
		// Leave room for the authority call before the server write timeout.
		r.Use(chimiddleware.Timeout(a.Config.Timeout + 5*time.Second))

		licenseHandler := handlers.NewLicenseHandler(a.Validator, a.errorHandler, a.Logger, a.Config.Cache.RetentionDays)
		r.Mount("/license", licenseHandler.Routes())
	})

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the HTTP server and the background loops. A server failure
// calls cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	bgCtx, bgCancel := context.WithCancel(ctx)
	a.cancel = bgCancel

	a.Logger.InfoContext(ctx, "starting application",
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.revalidateLoop(bgCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.pruneLoop(bgCtx)
	}()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			a.Logger.ErrorContext(ctx, "error closing cache", slog.String("error", err.Error()))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(ctx)
}
