package health

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gravyprompts/discovery/observe"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds each CheckAll; checks still running are reported
	// unhealthy with ErrCheckTimeout.
	// Default: 5 seconds
	Timeout time.Duration

	// Logger receives status changes of individual checkers.
	// Default: no-op
	Logger observe.Logger
}

// Report is the combined outcome of every registered check.
type Report struct {
	Status    Status
	Results   map[string]Result
	Timestamp time.Time
}

// Aggregator runs a set of checkers as one.
type Aggregator struct {
	timeout time.Duration
	logger  observe.Logger

	mu       sync.RWMutex
	names    []string
	checkers map[string]Checker
	last     map[string]Status
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config AggregatorConfig) *Aggregator {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Aggregator{
		timeout:  config.Timeout,
		logger:   config.Logger.With(observe.Field{Key: "component", Value: "health"}),
		checkers: make(map[string]Checker),
		last:     make(map[string]Status),
	}
}

// Register adds checker under its name, replacing any checker with the same
// name.
func (a *Aggregator) Register(checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := checker.Name()
	if _, exists := a.checkers[name]; !exists {
		a.names = append(a.names, name)
	}
	a.checkers[name] = checker
}

// Names returns the registered checker names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.names)
}

// Check runs a single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrCheckerNotFound, name)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.record(ctx, name, runCheck(ctx, checker)), nil
}

// CheckAll runs every check in parallel and reports the worst status. With
// no checkers registered the report is healthy.
func (a *Aggregator) CheckAll(ctx context.Context) Report {
	a.mu.RLock()
	names := slices.Clone(a.names)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = a.checkers[name]
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]Result, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = runCheck(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:    StatusHealthy,
		Results:   make(map[string]Result, len(names)),
		Timestamp: time.Now(),
	}
	for i, name := range names {
		r := a.record(ctx, name, results[i])
		report.Results[name] = r
		report.Status = worse(report.Status, r.Status)
	}
	return report
}

// record logs a checker's status when it changes.
func (a *Aggregator) record(ctx context.Context, name string, r Result) Result {
	a.mu.Lock()
	prev, seen := a.last[name]
	a.last[name] = r.Status
	a.mu.Unlock()

	if seen && prev == r.Status || !seen && r.Status == StatusHealthy {
		return r
	}
	fields := []observe.Field{
		{Key: "check", Value: name},
		{Key: "status", Value: r.Status.String()},
		{Key: "message", Value: r.Message},
	}
	if r.Error != nil {
		fields = append(fields, observe.Err(r.Error))
	}
	if r.Status == StatusHealthy {
		a.logger.Info(ctx, "health check recovered", fields...)
	} else {
		a.logger.Warn(ctx, "health check status changed", fields...)
	}
	return r
}

// runCheck runs checker, giving up when ctx is done. A panicking checker is
// reported unhealthy.
func runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- Unhealthy(fmt.Sprintf("check panicked: %v", p), ErrCheckFailed)
			}
		}()
		done <- checker.Check(ctx)
	}()

	var r Result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = Unhealthy("check timed out", ErrCheckTimeout)
	}
	r.Duration = time.Since(start)
	if r.Timestamp.IsZero() {
		r.Timestamp = start
	}
	return r
}
