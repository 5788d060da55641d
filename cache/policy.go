package cache

import "time"

// Policy configures caching behavior.
type Policy struct {
	// DefaultTTL is the TTL to use when none is specified.
	// If zero, caching is disabled by default.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// Capacity is the maximum number of entries kept in memory.
	// If zero, the entry count is unbounded.
	Capacity int

	// MaxBytes is the approximate memory ceiling for stored keys and values.
	// If zero, memory is unbounded.
	MaxBytes int64

	// EvictFraction is the share of entries removed per eviction pass.
	// At least one entry is always removed.
	EvictFraction float64
}

// DefaultPolicy returns the default caching policy.
// DefaultTTL: 5 minutes, MaxTTL: 1 hour, Capacity: 100, MaxBytes: 50MB,
// EvictFraction: 0.1
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL:    5 * time.Minute,
		MaxTTL:        1 * time.Hour,
		Capacity:      100,
		MaxBytes:      50 * 1024 * 1024,
		EvictFraction: 0.1,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}

// evictCount is how many entries one eviction pass removes from n.
func (p Policy) evictCount(n int) int {
	frac := p.EvictFraction
	if frac <= 0 || frac > 1 {
		frac = 0.1
	}
	count := int(float64(n) * frac)
	if count < 1 {
		count = 1
	}
	return count
}
