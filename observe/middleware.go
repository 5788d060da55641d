package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature Middleware wraps.
type ExecuteFunc func(ctx context.Context, op Op) error

// Middleware wraps an operation with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap returns a thread-safe ExecuteFunc.
//   - Context: the span context is propagated to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced with no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a Middleware that only calls through.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Metrics returns the metrics recorder, for callers that record cache lookups.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Wrap wraps fn with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, op Op) error {
		ctx, span := m.tracer.StartSpan(ctx, op)
		start := time.Now()

		err := fn(ctx, op)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordExecution(ctx, op, duration, err)

		opLogger := m.logger.With(op.Fields()...)
		durationField := Field{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000}
		if err != nil {
			opLogger.Error(ctx, "operation failed", durationField, Err(err))
		} else {
			opLogger.Debug(ctx, "operation completed", durationField)
		}

		return err
	}
}

// Run executes fn under m and returns its typed result. A nil Middleware just
// calls fn.
func Run[T any](ctx context.Context, m *Middleware, op Op, fn func(ctx context.Context) (T, error)) (T, error) {
	if m == nil {
		return fn(ctx)
	}
	var out T
	err := m.Wrap(func(ctx context.Context, _ Op) error {
		var err error
		out, err = fn(ctx)
		return err
	})(ctx, op)
	return out, err
}
