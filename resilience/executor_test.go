package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutor_NoStages(t *testing.T) {
	e := NewExecutor(ExecutorConfig{})

	called := false
	err := e.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	if err != nil || !called {
		t.Errorf("Execute() = %v, called = %v", err, called)
	}
	if e.CircuitBreaker() != nil {
		t.Error("CircuitBreaker() should be nil when not configured")
	}
}

func TestExecutor_TimeoutCountsAsBreakerFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	e := NewExecutor(ExecutorConfig{Breaker: cb, Timeout: 5 * time.Millisecond})

	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	for i := 0; i < 2; i++ {
		if err := e.Execute(context.Background(), slow); !errors.Is(err, ErrTimeout) {
			t.Fatalf("Execute() error = %v, want ErrTimeout", err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}
	if err := e.Execute(context.Background(), succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
}

func TestExecutor_LimiterRunsFirst(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1})
	e := NewExecutor(ExecutorConfig{
		Limiter: NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1}),
		Breaker: cb,
	})

	_ = e.Execute(context.Background(), succeed)
	err := e.Execute(context.Background(), succeed)

	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("Execute() error = %v, want ErrRateLimitExceeded", err)
	}
	if cb.State() != StateClosed {
		t.Error("throttled calls must not reach the breaker")
	}
}
