package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Result is the outcome of a memoized computation: either a value or an error,
// never both. Only successful results are stored.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps an error.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the result carries a value.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Unpack returns the value and error pair.
func (r Result[T]) Unpack() (T, error) {
	return r.Value, r.Err
}

// LoadFunc computes a value for an argument.
type LoadFunc[A, T any] func(ctx context.Context, arg A) (T, error)

// KeyFunc maps an argument to its cache key.
type KeyFunc[A any] func(arg A) string

// Cached wraps fn with read-through caching.
//
// On a hit the stored value is decoded and fn is not called. On a miss fn runs
// and its value is stored with the given ttl, but only when fn succeeded;
// failures are returned unchanged and the next call runs fn again. Values are
// stored as JSON. A nil cache, an invalid key, or an undecodable stored value
// all fall back to calling fn.
func Cached[A, T any](c Cache, fn LoadFunc[A, T], key KeyFunc[A], ttl time.Duration) LoadFunc[A, T] {
	return func(ctx context.Context, arg A) (T, error) {
		if c == nil {
			return fn(ctx, arg)
		}

		k := key(arg)
		if ValidateKey(k) != nil {
			return fn(ctx, arg)
		}

		if raw, ok := c.Get(ctx, k); ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
			// Stored value no longer decodes into T; drop it and recompute.
			_ = c.Delete(ctx, k)
		}

		res := load(ctx, fn, arg)
		if res.OK() {
			if raw, err := json.Marshal(res.Value); err == nil {
				_ = c.Set(ctx, k, raw, ttl)
			}
		}
		return res.Unpack()
	}
}

func load[A, T any](ctx context.Context, fn LoadFunc[A, T], arg A) Result[T] {
	v, err := fn(ctx, arg)
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}
