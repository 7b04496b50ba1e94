package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/opsmind/pulseguard/core"
)

// RetryConfig bounds an exponential backoff loop.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig matches the notifier's out-of-the-box tolerance for a
// flaky Telegram API: three attempts, doubling from 100ms up to 5s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// nextDelay returns the backoff delay before attempt N+1, given the delay
// used before attempt N. Jitter is full jitter (uniform in [0, delay]) when
// enabled, which spreads retries better than a fixed offset under load.
func (c *RetryConfig) nextDelay(prev time.Duration) time.Duration {
	delay := time.Duration(float64(prev) * c.BackoffFactor)
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if c.JitterEnabled && delay > 0 {
		delay = time.Duration(rand.Int63n(int64(delay)))
	}
	return delay
}

// sleep blocks for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, ctx is cancelled, or config.MaxAttempts
// is exhausted, backing off between attempts per config.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == config.MaxAttempts {
			break
		}
		if attempt > 1 {
			delay = config.nextDelay(delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", config.MaxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}

// RetryWithCircuitBreaker wraps fn's calls with cb's gate: a call is skipped
// (and counted as a failure against the retry budget, not the breaker) while
// the breaker is open, and each attempt that does run reports its outcome
// back to cb.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		if !cb.CanExecute() {
			return core.ErrCircuitBreakerOpen
		}
		if err := fn(); err != nil {
			cb.RecordFailure()
			return err
		}
		cb.RecordSuccess()
		return nil
	})
}
