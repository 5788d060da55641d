package observe

import (
	"context"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Op describes an instrumented operation.
type Op struct {
	Component string            // Subsystem, e.g. "router" or "cache" (optional)
	Name      string            // Operation name (required)
	Labels    map[string]string // Low-cardinality attributes such as the filter
}

// SpanName returns the deterministic span name for this operation.
// Format: discovery.<component>.<name> or discovery.<name>
func (o Op) SpanName() string {
	return "discovery." + o.ID()
}

// ID returns component.name, or just name when there is no component.
func (o Op) ID() string {
	if o.Component != "" {
		return o.Component + "." + o.Name
	}
	return o.Name
}

// With returns a copy of o with an extra label.
func (o Op) With(key, value string) Op {
	labels := make(map[string]string, len(o.Labels)+1)
	maps.Copy(labels, o.Labels)
	labels[key] = value
	o.Labels = labels
	return o
}

// Attributes returns the op as OpenTelemetry attributes, labels sorted by key.
func (o Op) Attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2+len(o.Labels))
	attrs = append(attrs, attribute.String("op.id", o.ID()))
	if o.Component != "" {
		attrs = append(attrs, attribute.String("op.component", o.Component))
	}
	for _, k := range slices.Sorted(maps.Keys(o.Labels)) {
		attrs = append(attrs, attribute.String("op."+k, o.Labels[k]))
	}
	return attrs
}

// Fields returns the op as log fields.
func (o Op) Fields() []Field {
	fields := make([]Field, 0, 1+len(o.Labels))
	fields = append(fields, Field{Key: "op", Value: o.ID()})
	for _, k := range slices.Sorted(maps.Keys(o.Labels)) {
		fields = append(fields, Field{Key: k, Value: o.Labels[k]})
	}
	return fields
}

// Tracer wraps OpenTelemetry tracing with operation-scoped span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for the operation.
	StartSpan(ctx context.Context, op Op) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

// StartSpan starts a span carrying the op attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, op Op) (context.Context, trace.Span) {
	attrs := append(op.Attributes(), attribute.Bool("op.error", false))
	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("op.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, op Op) (context.Context, trace.Span) {
	return t.noop.Start(ctx, op.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
