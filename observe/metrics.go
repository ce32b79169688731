package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records control-loop measurements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordProbe records one health probe and the status it produced.
	RecordProbe(ctx context.Context, service, status string, latency time.Duration)

	// RecordRecovery records one recovery attempt.
	RecordRecovery(ctx context.Context, service, action string, success bool, latency time.Duration)
}

type metricsImpl struct {
	probes         metric.Int64Counter
	probeLatency   metric.Float64Histogram
	recoveries     metric.Int64Counter
	recoveryFailed metric.Int64Counter
	recoveryTime   metric.Float64Histogram
}

// NewMetrics creates the Phoenix instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	probes, err := meter.Int64Counter(
		"phoenix.probe.total",
		metric.WithDescription("Health probes by resulting status"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	probeLatency, err := meter.Float64Histogram(
		"phoenix.probe.duration_ms",
		metric.WithDescription("Health probe latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	recoveries, err := meter.Int64Counter(
		"phoenix.recovery.total",
		metric.WithDescription("Recovery attempts by action"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	recoveryFailed, err := meter.Int64Counter(
		"phoenix.recovery.failures",
		metric.WithDescription("Recovery attempts that did not succeed"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	recoveryTime, err := meter.Float64Histogram(
		"phoenix.recovery.duration_ms",
		metric.WithDescription("Recovery action execution time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		probes:         probes,
		probeLatency:   probeLatency,
		recoveries:     recoveries,
		recoveryFailed: recoveryFailed,
		recoveryTime:   recoveryTime,
	}, nil
}

func (m *metricsImpl) RecordProbe(ctx context.Context, service, status string, latency time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("health.status", status),
	)
	m.probes.Add(ctx, 1, opt)
	m.probeLatency.Record(ctx, float64(latency.Milliseconds()), opt)
}

func (m *metricsImpl) RecordRecovery(ctx context.Context, service, action string, success bool, latency time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("recovery.action", action),
		attribute.Bool("recovery.success", success),
	)
	m.recoveries.Add(ctx, 1, opt)
	if !success {
		m.recoveryFailed.Add(ctx, 1, opt)
	}
	m.recoveryTime.Record(ctx, float64(latency.Milliseconds()), opt)
}

type nopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordProbe(ctx context.Context, service, status string, latency time.Duration) {}
func (nopMetrics) RecordRecovery(ctx context.Context, service, action string, success bool, latency time.Duration) {
}
