package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

func newFallbackLimiter(t *testing.T, config Config) (*RateLimiter, *clockwork.FakeClock, *monitoring.Metrics) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	metrics := monitoring.NewMetrics()
	limiter := NewRateLimiterWithClock(&RedisClient{enabled: false}, config, metrics, clock)
	t.Cleanup(limiter.Close)

	return limiter, clock, metrics
}

func TestRateLimiterFallbackMode(t *testing.T) {
	limiter, clock, metrics := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "test:ip:1", PerMinute(5))
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
		assert.Equal(t, 4-i, result.Remaining)
	}

	result, err := limiter.Allow(ctx, "test:ip:1", PerMinute(5))
	require.NoError(t, err)
	assert.False(t, result.Allowed, "6th request should be blocked")
	assert.InDelta(t, float64(12*time.Second), float64(result.RetryAfter), float64(time.Millisecond))

	// other keys have their own bucket
	result, err = limiter.Allow(ctx, "test:ip:2", PerMinute(5))
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	clock.Advance(13 * time.Second)
	result, err = limiter.Allow(ctx, "test:ip:1", PerMinute(5))
	require.NoError(t, err)
	assert.True(t, result.Allowed, "one token refilled")

	assert.Equal(t, int64(8), metrics.RateLimitFallbackCount)
}

func TestRateLimiterBurstMultiplier(t *testing.T) {
	limiter, _, _ := newFallbackLimiter(t, Config{BurstMultiplier: 2})
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 10; i++ {
		result, err := limiter.Allow(ctx, "burst", PerMinute(3))
		require.NoError(t, err)
		if result.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 6, allowed)
}

func TestRateLimiterInvalidRate(t *testing.T) {
	limiter, _, _ := newFallbackLimiter(t, DefaultConfig())

	_, err := limiter.Allow(context.Background(), "k", Rate{Limit: 0, Period: time.Minute})
	assert.Error(t, err)
}

func TestRateLimiterPurgesIdleLimiters(t *testing.T) {
	limiter, clock, _ := newFallbackLimiter(t, Config{CleanupInterval: time.Minute, IdleTTL: 5 * time.Minute})

	_, err := limiter.Allow(context.Background(), "idle", PerMinute(1))
	require.NoError(t, err)
	assert.Equal(t, 1, limiter.GetStats()["fallback_limiters"])

	clock.Advance(10 * time.Minute)
	limiter.purgeIdle()
	assert.Equal(t, 0, limiter.GetStats()["fallback_limiters"])
	assert.Equal(t, false, limiter.GetStats()["redis_enabled"])
}

func TestMiddleware(t *testing.T) {
	limiter, _, metrics := newFallbackLimiter(t, DefaultConfig())

	r := gin.New()
	r.POST("/api/reports", limiter.Middleware("submissions", PerMinute(2)), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/api/reports", nil))
		codes = append(codes, w.Code)
		last = w
	}

	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "30", last.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	assert.Equal(t, "rate_limit", body["category"])

	assert.Equal(t, int64(1), metrics.RateLimitBlocks)
}

func TestRedisClientDisabled(t *testing.T) {
	client, err := NewRedisClient(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.False(t, client.IsEnabled())
	assert.Error(t, client.HealthCheck(context.Background()))
	assert.NoError(t, client.Close())
	assert.Equal(t, false, client.GetPoolStats()["enabled"])
}
