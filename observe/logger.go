package observe

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that adds fields to every entry.
	With(fields ...Field) Logger
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// Err returns an "error" field carrying err's message.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// ParseLevel maps debug, info, warn and error to zap levels. Anything else
// yields info.
func ParseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type zapLogger struct {
	z *zap.Logger
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return newZapLogger(level, "json", w)
}

func newZapLogger(level, format string, w io.Writer) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)

	var enc zapcore.Encoder
	if format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(ParseLevel(level)))
	return &zapLogger{z: zap.New(core)}
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.z.Info(msg, l.fields(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.z.Warn(msg, l.fields(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.z.Error(msg, l.fields(ctx, fields)...)
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.z.Debug(msg, l.fields(ctx, fields)...)
}

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{z: l.z.With(toZap(fields)...)}
}

// fields converts to zap fields and appends the active trace id.
func (l *zapLogger) fields(ctx context.Context, fields []Field) []zap.Field {
	out := toZap(fields)
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			out = append(out, zap.String("trace_id", sc.TraceID().String()))
		}
	}
	return out
}

func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		if isRedactedField(f.Key) {
			out = append(out, zap.String(f.Key, "[REDACTED]"))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func isRedactedField(key string) bool {
	for _, k := range RedactedFields {
		if k == key {
			return true
		}
	}
	return false
}

type nopLogger struct{}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Info(ctx context.Context, msg string, fields ...Field)  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...Field)  {}
func (nopLogger) Error(ctx context.Context, msg string, fields ...Field) {}
func (nopLogger) Debug(ctx context.Context, msg string, fields ...Field) {}
func (l nopLogger) With(fields ...Field) Logger                          { return l }
