// Package observe provides the logging, tracing and metrics primitives used
// by the monitor, the recovery engine and the operator API.
//
// Logging is structured JSON through zap with secret-like keys redacted.
// Tracing and metrics go through OpenTelemetry; the exporter is picked by
// name (otlp, stdout, prometheus, none) so a deployment can switch sinks
// without code changes.
package observe
