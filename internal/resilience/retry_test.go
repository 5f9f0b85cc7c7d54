package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testPolicy = RetryPolicy{
	Name:          "test",
	MaxAttempts:   3,
	InitialDelay:  time.Second,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), clockwork.NewFakeClock(), testPolicy, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryBacksOff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	boom := errors.New("connection refused")

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(context.Background(), clock, testPolicy, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return boom
			}
			return nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("retry did not finish")
	}
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	policy := testPolicy
	policy.MaxAttempts = 1
	boom := errors.New("still down")

	err := Retry(context.Background(), clockwork.NewFakeClock(), policy, func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Retry(ctx, clockwork.NewFakeClock(), testPolicy, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, testPolicy.delay(tt.attempt), "attempt %d", tt.attempt)
	}
}
