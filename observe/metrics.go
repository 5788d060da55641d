package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records operation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records an operation with its duration and error status.
	RecordExecution(ctx context.Context, op Op, duration time.Duration, err error)

	// RecordCacheLookup records whether a cached read was served from cache.
	RecordCacheLookup(ctx context.Context, op Op, hit bool)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	lookups      metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"discovery.op.total",
		metric.WithDescription("Total number of operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"discovery.op.errors",
		metric.WithDescription("Total number of failed operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"discovery.op.duration_ms",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	lookups, err := meter.Int64Counter(
		"discovery.cache.lookups",
		metric.WithDescription("Cached reads by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		lookups:      lookups,
	}, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, op Op, duration time.Duration, err error) {
	opt := metric.WithAttributes(op.Attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, op Op, hit bool) {
	attrs := append(op.Attributes(), attribute.Bool("cache.hit", hit))
	m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

type noopMetrics struct{}

func (noopMetrics) RecordExecution(context.Context, Op, time.Duration, error) {}
func (noopMetrics) RecordCacheLookup(context.Context, Op, bool)               {}

// CacheStats is a point-in-time view of a cache, exported as gauges.
type CacheStats struct {
	Hits           int64
	Misses         int64
	Sets           int64
	Evictions      int64
	Size           int64
	HitRate        float64
	ApproxMemoryMB float64
}

// RegisterCacheGauges exports stats as observable gauges labelled with the
// cache name. stats is called once per collection. Unregister the returned
// registration when the cache goes away.
func RegisterCacheGauges(meter metric.Meter, name string, stats func() CacheStats) (metric.Registration, error) {
	hits, err := meter.Int64ObservableGauge("discovery.cache.hits", metric.WithUnit("{hit}"))
	if err != nil {
		return nil, err
	}
	misses, err := meter.Int64ObservableGauge("discovery.cache.misses", metric.WithUnit("{miss}"))
	if err != nil {
		return nil, err
	}
	sets, err := meter.Int64ObservableGauge("discovery.cache.sets", metric.WithUnit("{entry}"))
	if err != nil {
		return nil, err
	}
	evictions, err := meter.Int64ObservableGauge("discovery.cache.evictions", metric.WithUnit("{entry}"))
	if err != nil {
		return nil, err
	}
	size, err := meter.Int64ObservableGauge("discovery.cache.size", metric.WithUnit("{entry}"))
	if err != nil {
		return nil, err
	}
	hitRate, err := meter.Float64ObservableGauge("discovery.cache.hit_rate", metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}
	memory, err := meter.Float64ObservableGauge("discovery.cache.memory_mb", metric.WithUnit("MBy"))
	if err != nil {
		return nil, err
	}

	opt := metric.WithAttributes(attribute.String("cache.name", name))
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(hits, s.Hits, opt)
		o.ObserveInt64(misses, s.Misses, opt)
		o.ObserveInt64(sets, s.Sets, opt)
		o.ObserveInt64(evictions, s.Evictions, opt)
		o.ObserveInt64(size, s.Size, opt)
		o.ObserveFloat64(hitRate, s.HitRate, opt)
		o.ObserveFloat64(memory, s.ApproxMemoryMB, opt)
		return nil
	}, hits, misses, sets, evictions, size, hitRate, memory)
}
