package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Operation describes one unit of control-loop work for telemetry.
type Operation struct {
	Kind    string // probe or recovery
	Service string
	Action  string // recovery action, empty for probes
}

// SpanName returns phoenix.<kind>.<service>.
func (o Operation) SpanName() string {
	return "phoenix." + o.Kind + "." + o.Service
}

func (o Operation) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("phoenix.kind", o.Kind),
		attribute.String("service.name", o.Service),
	}
	if o.Action != "" {
		attrs = append(attrs, attribute.String("recovery.action", o.Action))
	}
	return attrs
}

func (o Operation) fields() []Field {
	fields := []Field{{Key: "service", Value: o.Service}}
	if o.Action != "" {
		fields = append(fields, Field{Key: "action", Value: o.Action})
	}
	return fields
}

// Tracer starts and ends spans for operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(op.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a tracer backed by the OpenTelemetry no-op provider.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
