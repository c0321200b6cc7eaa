package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/guttosm/proptrack/internal/auth"
	"github.com/guttosm/proptrack/internal/metrics"
	"github.com/guttosm/proptrack/internal/middleware"
)

// DefaultRequestTimeout applies when RouterOptions.Timeout is zero.
const DefaultRequestTimeout = 30 * time.Second

// RouterOptions carries the collaborators NewRouter mounts around the handler.
type RouterOptions struct {
	// Limiter throttles /api/v1 requests per client IP. Nil disables rate limiting.
	Limiter middleware.Limiter
	// Resolver authenticates /api/v1 requests. Required.
	Resolver auth.SessionResolver
	// Metrics records HTTP and domain metrics. Nil disables instrumentation.
	Metrics *metrics.Metrics
	// Gatherer backs GET /metrics. Nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
	// Timeout bounds each request's context.
	Timeout time.Duration
}

// NewRouter creates a Gin engine with routes configured.
// It receives a Handler instance with all business logic already injected.
//
// Responsibilities:
//   - Registers global middlewares (RequestID, Logger, Recovery, metrics).
//   - Adds request timeout handling.
//   - Mounts Swagger docs (/swagger/*any) and Prometheus metrics (/metrics).
//   - Configures rate-limited, authenticated API v1 routes (/api/v1).
//
// Note:
//   - Health and readiness endpoints (/healthz, /readyz) are registered in app.InitializeApp().
//   - Only /api/v1 is rate limited, so health checks and scrapes are never throttled.
//     Metrics wrap the limiter, so 429 responses are counted.
//
// Parameters:
//   - handler (*Handler): The HTTP handler with business logic.
//   - opts (RouterOptions): Limiter, session resolver, metrics and timeout.
//
// Returns:
//   - *gin.Engine: Configured Gin router.
func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	router := gin.New()

	// ─── Middlewares ───────────────────────────────
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RecoveryMiddleware(),
		middleware.ErrorHandler,
	)
	if opts.Metrics != nil {
		router.Use(opts.Metrics.GinMiddleware())
	}

	// ─── Timeout ──────────────────────────────────
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	// ─── Swagger & metrics ────────────────────────
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// ─── API v1 ───────────────────────────────────
	v1 := router.Group("/api/v1")
	if opts.Limiter != nil {
		v1.Use(middleware.RateLimiter(opts.Limiter))
	}
	v1.Use(auth.Middleware(opts.Resolver))
	{
		accounts := v1.Group("/accounts/:id")
		accounts.POST("/imports", handler.ImportTrades)
		accounts.POST("/imports/preview", handler.PreviewImport)
		accounts.GET("/statistics", handler.GetStatistics)
		accounts.POST("/statistics/custom", handler.EvaluateCustomStatistic)
	}

	return router
}
