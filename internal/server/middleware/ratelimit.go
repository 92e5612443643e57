// internal/server/middleware/ratelimit.go
package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	apperrors "loan-checker/internal/common/errors"
	"loan-checker/internal/common/logger"
	"loan-checker/internal/common/metrics"

	"github.com/gin-gonic/gin"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	storeTimeout       = 500 * time.Millisecond
)

// WindowCounter counts hits in a fixed window. *database.RedisClient implements it.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimiter allows limit requests per client per window on a route.
type RateLimiter struct {
	store  WindowCounter
	limit  int
	window time.Duration
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewRateLimiter(store WindowCounter, limit int, window time.Duration, log logger.Logger) *RateLimiter {
	return &RateLimiter{
		store:  store,
		limit:  limit,
		window: window,
		errors: apperrors.NewErrorHandler(log),
		logger: log.WithFields(map[string]interface{}{"component": "ratelimit"}),
	}
}

// Middleware rejects requests over the limit with 429. Requests pass when the
// limiter has no store or the store cannot be reached.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.store == nil || rl.limit <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()
		clientIP := c.ClientIP()
		key := rateLimitKeyPrefix + route + ":" + clientIP

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		count, ttl, err := rl.store.IncrWindow(ctx, key, rl.window)
		cancel()
		if err != nil {
			rl.logger.Warn("rate limit store unavailable, allowing request", map[string]interface{}{
				"route": route,
				"error": err,
			})
			c.Next()
			return
		}

		if count > int64(rl.limit) {
			rl.logger.Warn("rate limit exceeded", map[string]interface{}{
				"route":    route,
				"clientIp": clientIP,
				"count":    count,
			})
			metrics.RateLimited.WithLabelValues(route).Inc()
			if ttl <= 0 {
				ttl = rl.window
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			rl.errors.Respond(c, apperrors.NewRateLimitedError(ttl))
			return
		}

		c.Next()
	}
}
