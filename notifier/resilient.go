package notifier

import (
	"context"

	"github.com/opsmind/pulseguard/resilience"
)

// ResilientClient wraps Client with the ambient retry and circuit-breaker
// stack, so a flaky Telegram API doesn't stall the scheduler's notify step.
type ResilientClient struct {
	inner   *Client
	retry   *resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewResilientClient wraps inner. A nil retry uses resilience.DefaultRetryConfig;
// a nil breaker disables circuit-breaking and retries directly.
func NewResilientClient(inner *Client, retry *resilience.RetryConfig, breaker *resilience.CircuitBreaker) *ResilientClient {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}
	return &ResilientClient{inner: inner, retry: retry, breaker: breaker}
}

// SendMessage retries transient send failures, tripping the circuit breaker
// (if configured) after repeated failures.
func (r *ResilientClient) SendMessage(ctx context.Context, chatID, text string) error {
	send := func() error { return r.inner.SendMessage(ctx, chatID, text) }
	if r.breaker != nil {
		return resilience.RetryWithCircuitBreaker(ctx, r.retry, r.breaker, send)
	}
	return resilience.Retry(ctx, r.retry, send)
}

// GetUpdates is a direct passthrough: long-polling already blocks for up to
// 25s server-side, so retrying it would only compound latency.
func (r *ResilientClient) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	return r.inner.GetUpdates(ctx, offset)
}
