package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/medrec/internal/auth/http"
	"github.com/aussiebroadwan/medrec/internal/auth/metrics"
	"github.com/aussiebroadwan/medrec/internal/auth/service"
	"github.com/aussiebroadwan/medrec/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/httpx"
	"github.com/aussiebroadwan/medrec/pkg/identity"
	"github.com/aussiebroadwan/medrec/pkg/ratelimit"
	"github.com/aussiebroadwan/medrec/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	redisPrefix = "medrec:ratelimit:"
)

var errNoBearer = errors.New("no bearer token in request context")

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Optional backing stores, nil when not configured.
	db    *postgres.Store
	redis *redis.Client

	repo     *authsdk.Repository
	profiles identity.ProfileTable
	limiter  *ratelimit.Limiter

	registry  *prometheus.Registry
	collector *metrics.Collector

	verifier       *service.TokenVerifier
	profileService *service.ProfileService
	resetService   *service.PasswordResetService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// It fails in prod when the identity provider is not configured; elsewhere
// the gateway starts and refuses every authenticated request.
func New(ctx context.Context, cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "medrec-gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	app.initMetrics()

	if err := app.initLimiter(ctx); err != nil {
		return nil, err
	}
	if err := app.initIdentity(ctx); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("gateway starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"identity", app.cfg.IdentityConfigured(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	var err error
	if serr := app.server.Shutdown(ctx); serr != nil {
		app.logger.Error("graceful server shutdown failed", "error", serr)
		err = serr
		if cerr := app.server.Close(); cerr != nil {
			app.logger.Error("error closing server", "error", cerr)
		}
	}

	app.closeStores()
	app.logger.Info("gateway stopped")
	return err
}

func (app *Application) closeStores() {
	if app.db != nil {
		app.db.Close()
		app.db = nil
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
		app.redis = nil
	}
}

func (app *Application) initMetrics() {
	if !app.cfg.MetricsEnabled {
		return
	}
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.collector = metrics.NewCollector(app.registry)
}

// recorder returns the metrics sink; a nil *Collector must not leak into
// the Recorder interface.
func (app *Application) recorder() metrics.Recorder {
	if app.collector == nil {
		return metrics.Nop{}
	}
	return app.collector
}

// initLimiter selects the shared Redis ledger when REDIS_URL is set and an
// in-process one otherwise.
func (app *Application) initLimiter(ctx context.Context) error {
	var store ratelimit.Store = ratelimit.NewMemoryStore()

	if app.cfg.RedisURL != "" {
		opts, err := redis.ParseURL(app.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := pingWithRetry(ctx, client.Ping, 3, time.Second); err != nil {
			_ = client.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		app.redis = client
		store = ratelimit.NewRedisStore(client, redisPrefix)
		app.logger.Info("rate limiter using redis")
	}

	limiter, err := ratelimit.New(store)
	if err != nil {
		return err
	}
	app.limiter = limiter
	return nil
}

func pingWithRetry(ctx context.Context, ping func(context.Context) *redis.StatusCmd, attempts int, interval time.Duration) error {
	var err error
	for i := range attempts {
		if err = ping(ctx).Err(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(i+1) * interval):
		}
	}
	return err
}

// initIdentity builds the provider client, the profile table and the
// repository. Nothing is built when the provider is not configured.
func (app *Application) initIdentity(ctx context.Context) error {
	if !app.cfg.IdentityConfigured() {
		app.logger.Warn("identity provider not configured: authenticated routes will answer 503")
		return nil
	}

	icfg := identity.Config{
		URL:     app.cfg.IdentityURL,
		AnonKey: app.cfg.IdentityAnonKey,
		Logger:  app.logger,
	}
	client, err := identity.NewClient(icfg)
	if err != nil {
		return fmt.Errorf("identity client: %w", err)
	}

	if app.cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, postgres.Config{
			URL:           app.cfg.DatabaseURL,
			RetryAttempts: 5,
			RetryInterval: time.Second,
		})
		if err != nil {
			return err
		}
		app.db = db
		app.profiles = db
		app.logger.Info("profiles served from postgres")
	} else {
		// Row-level security is evaluated against the caller's own token.
		rest, err := identity.NewRestProfiles(icfg, func(ctx context.Context) (string, error) {
			if tok := httpx.TokenFromContext(ctx); tok != "" {
				return tok, nil
			}
			return "", errNoBearer
		})
		if err != nil {
			return fmt.Errorf("profile table: %w", err)
		}
		app.profiles = rest
	}

	app.repo, err = authsdk.NewRepository(authsdk.RepositoryConfig{
		Provider: client,
		Profiles: app.profiles,
		AppURL:   app.cfg.AppURL,
		Logger:   app.logger,
	})
	return err
}

func (app *Application) initServices() {
	if app.repo == nil {
		return
	}
	rec := app.recorder()

	app.verifier = &service.TokenVerifier{Users: app.repo, Metrics: rec}
	app.profileService = &service.ProfileService{
		Table:   app.profiles,
		Timeout: app.cfg.ProfilesTimeout,
		Metrics: rec,
	}
	app.resetService = &service.PasswordResetService{
		Requester:   app.repo,
		Limiter:     app.limiter,
		MaxAttempts: app.cfg.ResetMaxAttempts,
		Window:      app.cfg.ResetWindow,
		Metrics:     rec,
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.logger)

	// Leave the interface nil, not a nil *TokenVerifier, so the router
	// answers 503 instead of dereferencing it.
	if app.verifier != nil {
		router.Verifier = app.verifier
	}
	router.ProfileService = app.profileService
	router.PasswordResetService = app.resetService
	router.SwaggerEnabled = app.cfg.SwaggerEnabled
	if app.collector != nil {
		router.Metrics = app.collector
		router.Gatherer = app.registry
	}

	router.ReadinessChecks["identity"] = func(*http.Request) error {
		if app.repo == nil {
			return ErrIdentityNotConfigured
		}
		return nil
	}
	if app.db != nil {
		router.ReadinessChecks["profiles"] = func(r *http.Request) error { return app.db.Ping(r.Context()) }
	}
	if app.redis != nil {
		router.ReadinessChecks["limiter"] = func(r *http.Request) error { return app.redis.Ping(r.Context()).Err() }
	}

	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: app.cfg.ReadHeaderTimeout,
	}
}
