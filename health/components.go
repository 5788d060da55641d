package health

import (
	"context"
	"fmt"
	"runtime"

	"github.com/gravyprompts/discovery/cache"
	"github.com/gravyprompts/discovery/store"
)

// CacheCheckerConfig configures CacheChecker.
type CacheCheckerConfig struct {
	// Probe pings the cache backend on every check when the cache
	// implements cache.Pinger. Pings leave the cache counters unchanged.
	Probe bool

	// MaxMemoryMB is the cache's memory ceiling. Zero disables the check.
	MaxMemoryMB float64

	// MemoryWarn is the fraction of MaxMemoryMB that reports degraded.
	// Default: 0.9
	MemoryWarn float64

	// MinHitRate reports degraded when the hit rate falls below it. Zero
	// disables the check.
	MinHitRate float64

	// MinLookups is the number of lookups needed before the hit rate counts.
	// Default: 100
	MinLookups int64
}

// CacheChecker reports the result cache. It never reports unhealthy.
type CacheChecker struct {
	cache  cache.Cache
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker for c.
func NewCacheChecker(c cache.Cache, config CacheCheckerConfig) *CacheChecker {
	if config.MemoryWarn <= 0 || config.MemoryWarn > 1 {
		config.MemoryWarn = 0.9
	}
	if config.MinLookups <= 0 {
		config.MinLookups = 100
	}
	return &CacheChecker{cache: c, config: config}
}

// Name returns "cache".
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check pings the backend when configured, then inspects the counters.
func (c *CacheChecker) Check(ctx context.Context) Result {
	m := c.cache.Metrics()
	details := map[string]any{
		"size":      m.Size,
		"hits":      m.Hits,
		"misses":    m.Misses,
		"hit_rate":  m.HitRate,
		"memory_mb": m.ApproxMemoryMB,
		"evictions": m.Evictions,
	}

	if p, ok := c.cache.(cache.Pinger); ok && c.config.Probe {
		if err := p.Ping(ctx); err != nil {
			details["error"] = err.Error()
			return Degraded("cache backend unreachable; reads fall back to the store").WithDetails(details)
		}
	}

	if limit := c.config.MaxMemoryMB; limit > 0 && m.ApproxMemoryMB >= limit*c.config.MemoryWarn {
		return Degraded(fmt.Sprintf("cache memory %.1fMB near ceiling %.1fMB", m.ApproxMemoryMB, limit)).WithDetails(details)
	}

	if c.config.MinHitRate > 0 && m.Hits+m.Misses >= c.config.MinLookups && m.HitRate < c.config.MinHitRate {
		return Degraded(fmt.Sprintf("cache hit rate %.2f below %.2f", m.HitRate, c.config.MinHitRate)).WithDetails(details)
	}

	return Healthy("cache ok").WithDetails(details)
}

// StoreChecker reports the template store by reading one public template.
type StoreChecker struct {
	store store.Store
}

// NewStoreChecker creates a checker for s.
func NewStoreChecker(s store.Store) *StoreChecker {
	return &StoreChecker{store: s}
}

// Name returns "store".
func (c *StoreChecker) Name() string {
	return "store"
}

// Check runs a single-item query against the public index.
func (c *StoreChecker) Check(ctx context.Context) Result {
	if _, err := c.store.Query(ctx, store.PublicApproved(1, nil)); err != nil {
		return Unhealthy("store query failed", fmt.Errorf("%w: %w", ErrCheckFailed, err))
	}
	return Healthy("store reachable")
}

// MemoryCheckerConfig configures MemoryChecker.
type MemoryCheckerConfig struct {
	// MaxHeapMB is the heap size considered full. Zero disables the check.
	MaxHeapMB float64

	// Warning is the fraction of MaxHeapMB that reports degraded.
	// Default: 0.8
	Warning float64

	// Critical is the fraction of MaxHeapMB that reports unhealthy.
	// Default: 0.95
	Critical float64
}

// MemoryChecker reports process heap use.
type MemoryChecker struct {
	config   MemoryCheckerConfig
	readHeap func() uint64
}

// NewMemoryChecker creates a heap checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.Warning <= 0 {
		config.Warning = 0.8
	}
	if config.Critical <= 0 {
		config.Critical = 0.95
	}
	return &MemoryChecker{config: config, readHeap: heapAlloc}
}

// Name returns "memory".
func (c *MemoryChecker) Name() string {
	return "memory"
}

// Check compares the live heap against the configured ceiling.
func (c *MemoryChecker) Check(_ context.Context) Result {
	heapMB := float64(c.readHeap()) / (1024 * 1024)
	details := map[string]any{
		"heap_mb":    heapMB,
		"goroutines": runtime.NumGoroutine(),
	}
	if c.config.MaxHeapMB <= 0 {
		return Healthy("heap unbounded").WithDetails(details)
	}

	used := heapMB / c.config.MaxHeapMB
	details["used"] = used
	switch {
	case used >= c.config.Critical:
		return Unhealthy(fmt.Sprintf("heap at %.0f%%", used*100), ErrCheckFailed).WithDetails(details)
	case used >= c.config.Warning:
		return Degraded(fmt.Sprintf("heap at %.0f%%", used*100)).WithDetails(details)
	default:
		return Healthy("heap ok").WithDetails(details)
	}
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

var (
	_ Checker = (*CacheChecker)(nil)
	_ Checker = (*StoreChecker)(nil)
	_ Checker = (*MemoryChecker)(nil)
)
