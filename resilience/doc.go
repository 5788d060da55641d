// Package resilience guards calls to shared backends.
//
// The patterns compose through an Executor:
//
//   - Circuit Breaker: stops calling a backend after repeated failures and
//     probes it again after a cool-down.
//
//   - Deadline: RunWithTimeout bounds a single call.
//
//   - Rate Limiter: a token bucket for one caller, or a KeyedLimiter holding
//     one bucket per (key, action) pair.
//
// The shared cache backend runs every call through an Executor so that a slow
// or failing table degrades to cache misses instead of slowing down searches:
//
//	exec := resilience.NewExecutor(resilience.ExecutorConfig{
//	    Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  5,
//	        ResetTimeout: 30 * time.Second,
//	    }),
//	    Timeout: 250 * time.Millisecond,
//	})
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return callTable(ctx)
//	})
//
// Request throttling uses a KeyedLimiter:
//
//	limiter := resilience.NewKeyedLimiter(resilience.KeyedLimiterConfig{Rate: 5, Burst: 10})
//	if !limiter.Allow(requestKey, "search") {
//	    return ErrRateLimited
//	}
package resilience
