package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gravyprompts/discovery/observe"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache       = errors.New("cache: cache is nil")
	ErrInvalidKey     = errors.New("cache: key is invalid")
	ErrKeyTooLong     = errors.New("cache: key exceeds max length")
	ErrInvalidPattern = errors.New("cache: pattern is invalid")
)

// Cache is the interface for memoizing template reads.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get never errors; it returns (nil, false) on miss. Backend
// failures degrade to a miss or a no-op and are logged, never returned.
// Returned errors are reserved for invalid keys and patterns.
type Cache interface {
	// Get retrieves a cached value. Returns (nil, false) on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value. ttl <= 0 selects the policy default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry and resets the counters.
	Clear(ctx context.Context) error

	// ClearPattern removes every key matching the glob and returns how many
	// were removed. '*' matches any run of characters.
	ClearPattern(ctx context.Context, pattern string) (int, error)

	// Metrics returns a snapshot of the cache counters.
	Metrics() Metrics
}

// Pinger is implemented by caches that can check their backend without
// touching counters, recency or capacity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Metrics is a point-in-time snapshot of cache activity.
type Metrics struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Sets           int64   `json:"sets"`
	Evictions      int64   `json:"evictions"`
	Size           int     `json:"size"`
	HitRate        float64 `json:"hitRate"`
	ApproxMemoryMB float64 `json:"approxMemoryMB"`
}

// Stats converts the snapshot for export as telemetry gauges.
func (m Metrics) Stats() observe.CacheStats {
	return observe.CacheStats{
		Hits:           m.Hits,
		Misses:         m.Misses,
		Sets:           m.Sets,
		Evictions:      m.Evictions,
		Size:           int64(m.Size),
		HitRate:        m.HitRate,
		ApproxMemoryMB: m.ApproxMemoryMB,
	}
}

func hitRate(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func bytesToMB(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
