// Package telemetry provides the structured logging, metrics, and tracing
// interfaces used across the orchestrator, supervisor, and executors. The
// interfaces are intentionally small so callers can pass lightweight test
// doubles; the default implementations delegate to goa.design/clue/log and
// OpenTelemetry.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the orchestrator.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer, and gauge helpers for run instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so orchestration code stays agnostic of the
// underlying OTEL provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// RunTelemetry bundles the three facets so they can be threaded through a
// single struct field on Orchestrator, Supervisor, and the executors rather
// than three separate constructor parameters.
type RunTelemetry struct {
	Log     Logger
	Metrics Metrics
	Trace   Tracer
}

// Default builds a RunTelemetry backed by Clue logging and OTEL metrics and
// tracing, reading the global MeterProvider/TracerProvider (configure them
// via clue.ConfigureOpenTelemetry before use).
func Default() RunTelemetry {
	return RunTelemetry{
		Log:     NewClueLogger(),
		Metrics: NewClueMetrics(),
		Trace:   NewClueTracer(),
	}
}

// Noop builds a RunTelemetry whose every call is a no-op, for tests and for
// callers that have not configured an OTEL/Clue exporter.
func Noop() RunTelemetry {
	return RunTelemetry{
		Log:     NewNoopLogger(),
		Metrics: NewNoopMetrics(),
		Trace:   NewNoopTracer(),
	}
}
