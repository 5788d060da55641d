package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow normally.
	StateClosed State = iota
	// StateOpen means calls are rejected without reaching the backend.
	StateOpen
	// StateHalfOpen means a limited number of probe calls are let through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
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

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	// Default: 5
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenMaxRequests is the number of probes allowed while half-open.
	// Default: 1
	HalfOpenMaxRequests int `yaml:"half_open_max_requests"`

	// OnStateChange is called after every transition, outside the breaker lock.
	OnStateChange func(from, to State) `yaml:"-"`

	// IsFailure decides whether an error counts against the backend.
	// Default: any error except the caller's own cancellation.
	IsFailure func(err error) bool `yaml:"-"`
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	rejected      int64
	openedAt      time.Time
	halfOpenCount int
}

type transition struct {
	from, to State
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = defaultIsFailure
	}

	return &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Execute runs op unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	var changes []transition
	cb.mu.Lock()
	state := cb.currentStateLocked(&changes)
	cb.mu.Unlock()
	cb.notify(changes)
	return state
}

// Reset closes the circuit and clears its failure count.
func (cb *CircuitBreaker) Reset() {
	var changes []transition
	cb.mu.Lock()
	cb.setStateLocked(StateClosed, &changes)
	cb.failures = 0
	cb.mu.Unlock()
	cb.notify(changes)
}

func (cb *CircuitBreaker) beforeRequest() error {
	var changes []transition
	cb.mu.Lock()
	defer func() {
		cb.mu.Unlock()
		cb.notify(changes)
	}()

	switch cb.currentStateLocked(&changes) {
	case StateOpen:
		cb.rejected++
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.halfOpenCount++
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	var changes []transition
	cb.mu.Lock()

	failed := cb.config.IsFailure(err)
	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			break
		}
		cb.failures++
		if cb.failures >= cb.config.MaxFailures {
			cb.openedAt = cb.now()
			cb.setStateLocked(StateOpen, &changes)
		}

	case StateHalfOpen:
		if failed {
			cb.openedAt = cb.now()
			cb.setStateLocked(StateOpen, &changes)
		} else {
			cb.failures = 0
			cb.setStateLocked(StateClosed, &changes)
		}
	}

	cb.mu.Unlock()
	cb.notify(changes)
}

func (cb *CircuitBreaker) currentStateLocked(changes *[]transition) State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.setStateLocked(StateHalfOpen, changes)
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State, changes *[]transition) {
	if cb.state == state {
		return
	}
	*changes = append(*changes, transition{from: cb.state, to: state})
	cb.state = state
	cb.halfOpenCount = 0
}

func (cb *CircuitBreaker) notify(changes []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		cb.config.OnStateChange(c.from, c.to)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	var changes []transition
	cb.mu.Lock()
	m := CircuitBreakerMetrics{
		State:    cb.currentStateLocked(&changes),
		Failures: cb.failures,
		Rejected: cb.rejected,
		OpenedAt: cb.openedAt,
	}
	cb.mu.Unlock()
	cb.notify(changes)
	return m
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State    State
	Failures int       // consecutive failures while closed
	Rejected int64     // calls refused while open or half-open
	OpenedAt time.Time // last time the circuit opened
}
