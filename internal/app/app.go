package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/guttosm/proptrack/config"
	"github.com/guttosm/proptrack/internal/api"
	"github.com/guttosm/proptrack/internal/auth"
	"github.com/guttosm/proptrack/internal/logger"
	"github.com/guttosm/proptrack/internal/metrics"
	"github.com/guttosm/proptrack/internal/middleware"
)

// ErrMissingJWTSecret is returned by InitializeApp when AUTH_JWT_SECRET is empty.
var ErrMissingJWTSecret = errors.New("AUTH_JWT_SECRET is required in api mode")

// redisOpener is an indirection used by InitializeApp; overridden in tests.
var redisOpener = InitRedis

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Connects to PostgreSQL using InitPostgres() and, when configured, Redis.
//   - Builds the storage, reconciliation and service layers (NewServices).
//   - Creates the Prometheus registry, rate limiter and session resolver.
//   - Configures the Gin router with all API routes.
//   - Registers health and readiness probes.
//   - Provides a cleanup function to close resources.
//
// Returns:
//   - *gin.Engine: the configured Gin HTTP router.
//   - func(): cleanup function to be executed on shutdown.
//   - error: any initialization error that occurred.
func InitializeApp() (*gin.Engine, func(), error) {
	// Load global configuration
	cfg := config.AppConfig
	if cfg.Auth.JWTSecret == "" {
		return nil, nil, ErrMissingJWTSecret
	}

	// Connect to PostgreSQL
	db, err := postgresOpener(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisOpener(cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Metrics live on a private registry exposed at /metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svcs, err := NewServices(cfg, db, m)
	if err != nil {
		_ = db.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, err
	}

	// Rate limiting: shared through Redis when available, else per process
	var limiter middleware.Limiter
	checks := map[string]api.Pinger{"postgres": svcs.Store.Ping}
	if n := cfg.Server.RateLimitPerMinute; n > 0 {
		if rdb != nil {
			limiter = middleware.NewRedisLimiter(rdb, middleware.PerMinute(n))
		} else {
			limiter = middleware.NewMemoryLimiter(middleware.PerMinute(n))
		}
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	handler := api.NewHandler(svcs.Imports, svcs.Statistics, cfg.Import.MaxUploadBytes)
	router := api.NewRouter(handler, api.RouterOptions{
		Limiter:  limiter,
		Resolver: auth.NewJWTResolver(cfg.Auth.JWTSecret),
		Metrics:  m,
		Gatherer: reg,
		Timeout:  cfg.Server.RequestTimeout,
	})

	// Register health and readiness probes
	api.NewHealthHandler(checks).Register(router)

	logger.L().Info().
		Bool("redis", rdb != nil).
		Int("rate_limit_per_minute", cfg.Server.RateLimitPerMinute).
		Msg("application initialized")

	// Cleanup resources on shutdown
	cleanup := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = db.Close()
	}

	return router, cleanup, nil
}
