package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache bounded by entry count and approximate
// memory. Entries are evicted least recently used first. Contents are local to
// the process: other instances never see them and a restart drops them.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
	policy  Policy
	now     func() time.Time

	bytes     int64
	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

type cacheEntry struct {
	key          string
	value        []byte
	size         int64
	expiresAt    time.Time
	lastAccessed time.Time
}

// NewMemoryCache creates a new in-memory cache with the given policy.
func NewMemoryCache(policy Policy) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		policy:  policy,
		now:     time.Now,
	}
}

// Get retrieves a value from the cache. Returns (nil, false) on miss or expiry.
// Expired entries are removed on read.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	now := c.now()
	if !now.Before(entry.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		return nil, false
	}

	entry.lastAccessed = now
	c.order.MoveToFront(elem)
	c.hits++
	return entry.value, true
}

// Set stores a value. ttl <= 0 selects the policy default; if the policy has no
// default the call is a no-op. Eviction runs before inserting a new key when
// the cache is at capacity or over its memory ceiling, so Set never rejects.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	ttl = c.policy.EffectiveTTL(ttl)
	if ttl <= 0 {
		return nil
	}

	size := int64(len(key) + len(value))

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}

	for c.order.Len() > 0 && c.overLimitLocked(size) {
		c.evictLocked()
	}

	elem := c.order.PushFront(&cacheEntry{
		key:          key,
		value:        value,
		size:         size,
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
	})
	c.entries[key] = elem
	c.bytes += size
	c.sets++

	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	c.mu.Unlock()
	return nil
}

// Clear removes all entries and resets every counter.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.bytes = 0
	c.hits = 0
	c.misses = 0
	c.sets = 0
	c.evictions = 0
	c.mu.Unlock()
	return nil
}

// ClearPattern removes all keys matching the glob pattern.
func (c *MemoryCache) ClearPattern(_ context.Context, pattern string) (int, error) {
	p, err := CompilePattern(pattern)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, elem := range c.entries {
		if p.Match(key) {
			c.removeLocked(elem)
			removed++
		}
	}
	return removed, nil
}

// Metrics returns a snapshot of the cache counters.
func (c *MemoryCache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Metrics{
		Hits:           c.hits,
		Misses:         c.misses,
		Sets:           c.sets,
		Evictions:      c.evictions,
		Size:           c.order.Len(),
		HitRate:        hitRate(c.hits, c.misses),
		ApproxMemoryMB: bytesToMB(c.bytes),
	}
}

// Ping reports whether the cache can serve reads. An in-process cache always
// can, unless ctx is already done.
func (c *MemoryCache) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored entries, including expired ones not yet read.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) overLimitLocked(incoming int64) bool {
	if c.policy.Capacity > 0 && c.order.Len() >= c.policy.Capacity {
		return true
	}
	if c.policy.MaxBytes > 0 && c.bytes+incoming > c.policy.MaxBytes {
		return true
	}
	return false
}

// evictLocked removes the least recently used slice of entries.
func (c *MemoryCache) evictLocked() {
	n := c.policy.evictCount(c.order.Len())
	for i := 0; i < n; i++ {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.removeLocked(back)
		c.evictions++
	}
}

func (c *MemoryCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.entries, entry.key)
	c.bytes -= entry.size
}

var (
	_ Cache  = (*MemoryCache)(nil)
	_ Pinger = (*MemoryCache)(nil)
)
