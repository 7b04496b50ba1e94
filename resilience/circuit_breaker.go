package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsmind/pulseguard/core"
)

// CircuitState is one of closed, open, or half-open.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a count-based breaker: it opens after
// FailureThreshold consecutive failures and stays open for RecoveryTimeout
// before allowing a single half-open trial.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	RecoveryTimeout  time.Duration
	Logger           core.Logger
}

// DefaultConfig returns a breaker config suitable for an outbound messenger
// call: five consecutive failures trips it, thirty seconds before retrying.
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "default",
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	}
}

func (c *CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("circuit breaker %q: failure threshold must be positive", c.Name)
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("circuit breaker %q: recovery timeout must be positive", c.Name)
	}
	return nil
}

// CircuitBreaker is a consecutive-failure breaker guarding a single
// downstream call (the notifier's Telegram API calls, in this watchdog).
// It implements core.CircuitBreaker.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu            sync.Mutex
	state         CircuitState
	failures      int
	openedAt      time.Time
	halfOpenTrial bool
}

// NewCircuitBreaker validates config and returns a breaker starting closed.
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}
	return &CircuitBreaker{config: config, state: StateClosed}, nil
}

// CanExecute reports whether a call may proceed right now. A breaker that
// has been open for at least RecoveryTimeout admits exactly one half-open
// trial call; further callers are rejected until that trial resolves.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return false
	case StateOpen:
		if time.Since(cb.openedAt) < cb.config.RecoveryTimeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.halfOpenTrial = true
		cb.config.Logger.Info("circuit breaker half-open trial", map[string]interface{}{"name": cb.config.Name})
		return true
	default:
		return false
	}
}

// RecordSuccess closes the breaker (from closed or a successful half-open trial).
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.config.Logger.Info("circuit breaker closed", map[string]interface{}{"name": cb.config.Name})
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenTrial = false
}

// RecordFailure counts a failure, opening the breaker once the threshold is
// reached in the closed state, or immediately re-opening a failed half-open
// trial.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.open()
		return
	}

	cb.failures++
	if cb.failures >= cb.config.FailureThreshold {
		cb.open()
	}
}

// open must be called with cb.mu held.
func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.halfOpenTrial = false
	cb.config.Logger.Warn("circuit breaker open", map[string]interface{}{
		"name":     cb.config.Name,
		"failures": cb.failures,
	})
}

// Execute runs fn under the breaker's gate, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	return cb.ExecuteWithTimeout(ctx, 0, fn)
}

// ExecuteWithTimeout runs fn under the breaker's gate with an optional
// per-call timeout (zero disables it).
func (cb *CircuitBreaker) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn func() error) error {
	if !cb.CanExecute() {
		return core.ErrCircuitBreakerOpen
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
	}

	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// GetState returns the breaker's current state as a string.
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}

// GetMetrics returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]interface{}{
		"name":     cb.config.Name,
		"state":    cb.state.String(),
		"failures": cb.failures,
	}
}

// Reset clears the breaker back to closed, discarding its failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenTrial = false
}
