package ratelimit

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/gin-gonic/gin"
)

// Middleware limits requests per client IP under a named bucket.
// Limiter failures are logged and the request is let through.
func (rl *RateLimiter) Middleware(name string, r Rate) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		key := fmt.Sprintf("ratelimit:%s:%s", name, ip)

		result, err := rl.Allow(c.Request.Context(), key, r)
		if err != nil {
			slog.Error("Rate limit check failed", "limit", name, "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock(name)
			}

			retrySeconds := int(result.RetryAfter.Round(time.Second).Seconds())
			if retrySeconds < 1 {
				retrySeconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(retrySeconds))

			errors.Respond(c, errors.NewRateLimitError(result.RetryAfter))
			return
		}

		c.Next()
	}
}
