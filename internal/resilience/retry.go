package resilience

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
)

// RetryPolicy holds configuration for retry behavior
type RetryPolicy struct {
	Name          string
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

var (
	// FastRetryPolicy suits local dependencies that usually recover quickly
	FastRetryPolicy = RetryPolicy{
		Name:          "fast",
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}

	// StartupRetryPolicy waits out services that start alongside the server
	StartupRetryPolicy = RetryPolicy{
		Name:          "startup",
		MaxAttempts:   4,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
)

// Retry calls fn until it succeeds, the attempts run out or ctx is done.
// The last error from fn is returned.
func Retry(ctx context.Context, clock clockwork.Clock, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		delay := policy.delay(attempt)
		slog.Debug("Retrying after failure",
			"policy", policy.Name,
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(delay):
		}
	}

	return lastErr
}

// delay computes the wait before the attempt following attempt
func (p RetryPolicy) delay(attempt int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	delay := time.Duration(float64(p.InitialDelay) * math.Pow(factor, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	// up to 10% jitter
	if p.JitterEnabled && delay >= 10 {
		delay += time.Duration(rand.Int63n(int64(delay / 10)))
	}

	return delay
}
