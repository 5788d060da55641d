package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	// Rate is the number of operations allowed per second.
	// Default: 100
	Rate float64 `yaml:"rate"`

	// Burst is the maximum burst size.
	// Default: 10
	Burst int `yaml:"burst"`

	// WaitOnLimit waits for a token instead of returning an error.
	WaitOnLimit bool `yaml:"wait_on_limit"`

	// MaxWait bounds the wait when WaitOnLimit is set.
	// Default: 1 second
	MaxWait time.Duration `yaml:"max_wait"`
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.Rate <= 0 {
		c.Rate = 100
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.MaxWait <= 0 {
		c.MaxWait = time.Second
	}
	return c
}

// RateLimiter is a single token bucket.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter that starts with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	config = config.withDefaults()
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
	}
}

// Allow reports whether one operation may proceed now, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a token is available, MaxWait elapses, or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, rl.config.MaxWait)
	defer cancel()

	if err := rl.limiter.Wait(ctx); err != nil {
		if ctx.Err() == context.Canceled {
			return ctx.Err()
		}
		return ErrRateLimitExceeded
	}
	return nil
}

// Execute runs op if the limiter admits it.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.WaitOnLimit {
		if err := rl.Wait(ctx); err != nil {
			return err
		}
	} else if !rl.Allow() {
		return ErrRateLimitExceeded
	}
	return op(ctx)
}

// Tokens returns the number of tokens available now.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}

// KeyedLimiterConfig configures a KeyedLimiter.
type KeyedLimiterConfig struct {
	// Rate and Burst apply to actions without an entry in Actions.
	// Defaults: 5 per second, burst 10.
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`

	// Actions overrides Rate and Burst per action name.
	Actions map[string]RateLimiterConfig `yaml:"actions"`

	// IdleTTL is how long an unused bucket is kept. Default: 10 minutes.
	IdleTTL time.Duration `yaml:"idle_ttl"`

	// MaxKeys bounds the number of live buckets; idle ones are swept first and
	// the least recently used are dropped after that. Default: 10000.
	MaxKeys int `yaml:"max_keys"`
}

// KeyedLimiter keeps one token bucket per (key, action) pair, so a noisy
// caller cannot exhaust another caller's budget.
type KeyedLimiter struct {
	config KeyedLimiterConfig
	now    func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

type bucketKey struct {
	key    string
	action string
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter creates a KeyedLimiter.
func NewKeyedLimiter(config KeyedLimiterConfig) *KeyedLimiter {
	if config.Rate <= 0 {
		config.Rate = 5
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	return &KeyedLimiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[bucketKey]*bucket),
	}
}

// Allow reports whether key may perform action now, consuming a token if so.
func (k *KeyedLimiter) Allow(key, action string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	bk := bucketKey{key: key, action: action}
	b, ok := k.buckets[bk]
	if !ok {
		if len(k.buckets) >= k.config.MaxKeys {
			k.makeRoomLocked(now)
		}
		r, burst := k.limitFor(action)
		b = &bucket{limiter: rate.NewLimiter(r, burst)}
		k.buckets[bk] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than IdleTTL and returns how many were
// removed.
func (k *KeyedLimiter) Sweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sweepLocked(k.now())
}

// Len returns the number of live buckets.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

func (k *KeyedLimiter) limitFor(action string) (rate.Limit, int) {
	if cfg, ok := k.config.Actions[action]; ok {
		cfg = cfg.withDefaults()
		return rate.Limit(cfg.Rate), cfg.Burst
	}
	return rate.Limit(k.config.Rate), k.config.Burst
}

func (k *KeyedLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for bk, b := range k.buckets {
		if now.Sub(b.lastSeen) > k.config.IdleTTL {
			delete(k.buckets, bk)
			removed++
		}
	}
	return removed
}

func (k *KeyedLimiter) makeRoomLocked(now time.Time) {
	if k.sweepLocked(now) > 0 {
		return
	}
	var oldestKey bucketKey
	var oldest time.Time
	first := true
	for bk, b := range k.buckets {
		if first || b.lastSeen.Before(oldest) {
			oldestKey, oldest, first = bk, b.lastSeen, false
		}
	}
	delete(k.buckets, oldestKey)
}
