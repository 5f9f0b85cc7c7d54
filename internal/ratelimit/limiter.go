package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/monitoring"
	"github.com/go-redis/redis_rate/v10"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	BurstMultiplier int           // burst capacity as a multiple of the per-period limit
	CleanupInterval time.Duration // how often idle fallback limiters are dropped
	IdleTTL         time.Duration // fallback limiters unused this long are dropped
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		BurstMultiplier: 1,
		CleanupInterval: time.Hour,
		IdleTTL:         time.Hour,
	}
}

// Rate is a number of requests allowed per period
type Rate struct {
	Limit  int
	Period time.Duration
}

// PerMinute returns a Rate of n requests per minute
func PerMinute(n int) Rate {
	return Rate{Limit: n, Period: time.Minute}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics
	clock        clockwork.Clock

	fallbackLimiters map[string]*fallbackEntry
	fallbackMutex    sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRateLimiter creates a new rate limiter with Redis and in-memory fallback
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	return NewRateLimiterWithClock(redisClient, config, metrics, clockwork.NewRealClock())
}

// NewRateLimiterWithClock creates a rate limiter whose fallback reads time from clock
func NewRateLimiterWithClock(redisClient *RedisClient, config Config, metrics *monitoring.Metrics, clock clockwork.Clock) *RateLimiter {
	defaults := DefaultConfig()
	if config.BurstMultiplier < 1 {
		config.BurstMultiplier = defaults.BurstMultiplier
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	if redisClient == nil {
		redisClient = &RedisClient{}
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		clock:            clock,
		fallbackLimiters: make(map[string]*fallbackEntry),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

// Allow checks whether one more request under key fits into r
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if r.Limit <= 0 || r.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", r.Limit, r.Period)
	}

	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, r)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, r), nil
}

// allowRedis performs rate limiting using the Redis GCRA limiter
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	limit := redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit * rl.config.BurstMultiplier,
		Period: r.Period,
	}

	res, err := rl.redisLimiter.Allow(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    rl.clock.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

// allowFallback performs rate limiting using an in-memory token bucket
func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	now := rl.clock.Now()

	rl.fallbackMutex.Lock()
	entry, exists := rl.fallbackLimiters[key]
	if !exists {
		every := r.Period / time.Duration(r.Limit)
		entry = &fallbackEntry{
			limiter: rate.NewLimiter(rate.Every(every), r.Limit*rl.config.BurstMultiplier),
		}
		rl.fallbackLimiters[key] = entry
	}
	entry.lastSeen = now
	limiter := entry.limiter
	rl.fallbackMutex.Unlock()

	result := &Result{
		Limit:   r.Limit,
		ResetAt: now.Add(r.Period),
	}

	if limiter.AllowN(now, 1) {
		result.Allowed = true
		if remaining := int(limiter.TokensAt(now)); remaining > 0 {
			result.Remaining = remaining
		}
		return result
	}

	// reserve only to learn the wait, then give the token back
	reservation := limiter.ReserveN(now, 1)
	result.RetryAfter = reservation.DelayFrom(now)
	reservation.CancelAt(now)
	result.ResetAt = now.Add(result.RetryAfter)

	return result
}

// cleanupFallbackLimiters periodically removes idle fallback limiters
func (rl *RateLimiter) cleanupFallbackLimiters() {
	defer close(rl.done)

	ticker := rl.clock.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.Chan():
			rl.purgeIdle()
		}
	}
}

func (rl *RateLimiter) purgeIdle() {
	cutoff := rl.clock.Now().Add(-rl.config.IdleTTL)

	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key, entry := range rl.fallbackLimiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Dropped idle fallback rate limiters", "count", removed)
	}
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}
