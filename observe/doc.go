// Package observe provides the tracing, metrics, and structured logging used
// across template discovery.
//
// An Observer owns the OpenTelemetry providers. Operations are described by an
// Op, which names the span, labels the metrics, and scopes the logger. The
// Middleware ties the three together around a single call; Run is the typed
// form used by the query router.
//
// Cache health is exported as observable gauges through RegisterCacheGauges,
// which polls a CacheStats snapshot on every collection.
package observe
