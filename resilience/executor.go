package resilience

import (
	"context"
	"time"
)

// ExecutorConfig selects the stages of an Executor. Zero fields disable
// their stage.
type ExecutorConfig struct {
	// Limiter throttles calls before they reach the backend.
	Limiter *RateLimiter

	// Breaker rejects calls while the backend keeps failing.
	Breaker *CircuitBreaker

	// Timeout bounds each call.
	Timeout time.Duration
}

// Executor guards calls to one remote backend.
//
// Stages run limiter, then breaker, then deadline. A throttled call never
// reaches the breaker, and a call that times out counts as a failure.
type Executor struct {
	config ExecutorConfig
}

// NewExecutor creates an Executor.
func NewExecutor(config ExecutorConfig) *Executor {
	return &Executor{config: config}
}

// CircuitBreaker returns the breaker stage, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.config.Breaker
}

// Execute runs op through the configured stages.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	call := func(ctx context.Context) error {
		return RunWithTimeout(ctx, e.config.Timeout, op)
	}

	guarded := call
	if cb := e.config.Breaker; cb != nil {
		guarded = func(ctx context.Context) error {
			return cb.Execute(ctx, call)
		}
	}

	if rl := e.config.Limiter; rl != nil {
		return rl.Execute(ctx, guarded)
	}
	return guarded(ctx)
}
