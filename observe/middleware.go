package observe

import (
	"context"
	"time"
)

// OperationFunc is the signature Middleware wraps.
type OperationFunc func(ctx context.Context) error

// Middleware wraps probe and recovery work with a span and a log line.
// Callers record their own metrics since only they know the outcome
// vocabulary (health status, recovery success).
type Middleware struct {
	tracer Tracer
	logger Logger
}

// NewMiddleware creates a Middleware. Nil arguments fall back to no-ops.
func NewMiddleware(tracer Tracer, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, logger: logger}
}

// Run executes fn inside a span for op and logs its duration. Errors from fn
// are recorded on the span and returned unchanged.
func (m *Middleware) Run(ctx context.Context, op Operation, fn OperationFunc) error {
	ctx, span := m.tracer.StartSpan(ctx, op)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)

	fields := append(op.fields(), Field{Key: "duration_ms", Value: duration.Milliseconds()})
	if err != nil {
		fields = append(fields, Err(err))
		m.logger.Warn(ctx, op.Kind+" failed", fields...)
	} else {
		m.logger.Debug(ctx, op.Kind+" completed", fields...)
	}
	return err
}

// MiddlewareFromObserver builds a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) *Middleware {
	return NewMiddleware(NewTracer(obs.Tracer()), obs.Logger())
}
