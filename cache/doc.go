// Package cache memoizes expensive template reads.
//
// It provides a Cache interface with an in-process LRU implementation and a
// DynamoDB-backed shared implementation, compiled glob patterns for
// invalidation, deterministic key builders, and a Cached wrapper that never
// stores failures. A cache is an optimization only: every read path must work
// when it is empty, stale, or unavailable.
package cache
