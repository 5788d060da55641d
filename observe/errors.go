package observe

import "errors"

var (
	ErrMissingServiceName     = errors.New("observe: service_name must be set")
	ErrInvalidSamplePct       = errors.New("observe: tracing sample_pct outside [0, 1]")
	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unknown log level")

	// ErrNilObserver is returned by MiddlewareFromObserver for a nil Observer.
	ErrNilObserver = errors.New("observe: nil observer")
)
