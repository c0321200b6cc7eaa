package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/guttosm/proptrack/internal/domain/dto"
	"github.com/guttosm/proptrack/internal/logger"
)

// Limit is a rate limit rule: Rate requests per Period.
type Limit struct {
	Rate   int
	Period time.Duration
}

// PerMinute returns a limit of n requests per minute.
func PerMinute(n int) Limit { return Limit{Rate: n, Period: time.Minute} }

// RateResult is the outcome of one Allow call.
type RateResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (RateResult, error)
}

// MemoryLimiter is a fixed-window limiter for single-instance deployments.
type MemoryLimiter struct {
	limit Limit
	now   func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

// NewMemoryLimiter creates a MemoryLimiter enforcing limit.
func NewMemoryLimiter(limit Limit) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, now: time.Now, windows: make(map[string]*window)}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (RateResult, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.limit.Period {
		// drop stale windows while we hold the lock
		if len(l.windows) > 10000 {
			for k, v := range l.windows {
				if now.Sub(v.start) >= l.limit.Period {
					delete(l.windows, k)
				}
			}
		}
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++

	if w.count > l.limit.Rate {
		return RateResult{RetryAfter: w.start.Add(l.limit.Period).Sub(now)}, nil
	}
	return RateResult{Allowed: true, Remaining: l.limit.Rate - w.count}, nil
}

// RedisLimiter is a GCRA limiter shared across instances through Redis.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisLimiter creates a RedisLimiter enforcing limit on rdb.
func NewRedisLimiter(rdb *redis.Client, limit Limit) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   redis_rate.Limit{Rate: limit.Rate, Burst: limit.Rate, Period: limit.Period},
		prefix:  "proptrack:ratelimit:",
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (RateResult, error) {
	res, err := l.limiter.Allow(ctx, l.prefix+key, l.limit)
	if err != nil {
		return RateResult{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	return RateResult{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// RateLimiter is a Gin middleware limiting requests per client IP.
//
// Behavior:
//   - Sets X-RateLimit-Remaining on allowed requests.
//   - Rejects with 429 and Retry-After (seconds) once the limit is exceeded.
//   - When the limiter itself fails (e.g. Redis is down) the request is let
//     through and the failure is logged.
//
// Usage:
//
//	router := gin.New()
//	router.Use(middleware.RateLimiter(middleware.NewMemoryLimiter(middleware.PerMinute(60))))
func RateLimiter(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.L().Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !res.Allowed {
			secs := int(res.RetryAfter.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse("rate limit exceeded", nil))
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Next()
	}
}
