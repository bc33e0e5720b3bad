// Package observability owns the control plane's OpenTelemetry surface:
// tracer setup and shutdown, span helpers for the dispatch path, W3C trace
// propagation toward the provider, and HTTP server middleware for the
// daemon's own endpoints.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the exporter and sampling for the tracer provider.
type Config struct {
	Enabled     bool
	Exporter    string  // otlp-http, stdout
	Endpoint    string  // collector address for otlp-http, e.g. localhost:4318
	ServiceName string  // tetra
	SampleRate  float64 // 0.0 to 1.0
}

type tracerState struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	enabled bool
}

// Before Init (and forever, when tracing stays disabled) the state carries
// a noop tracer, so StartSpan never needs a nil check and library consumers
// don't have to initialize tracing at all.
var state = &tracerState{tracer: trace.NewNoopTracerProvider().Tracer("")}

// Init builds and installs the global tracer provider. With cfg.Enabled
// false it installs a noop tracer and returns nil.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		state = &tracerState{tracer: trace.NewNoopTracerProvider().Tracer("")}
		return nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion("1.0.0"),
	))
	if err != nil {
		return fmt.Errorf("build telemetry resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp-http", "otlp":
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("build OTLP exporter: %w", err)
		}
	case "stdout":
		exporter = discardExporter{}
	default:
		return fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate >= 0 && cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	state = &tracerState{tp: tp, tracer: tp.Tracer(cfg.ServiceName), enabled: true}
	return nil
}

// Shutdown flushes and stops the tracer provider, bounded to five seconds.
func Shutdown(ctx context.Context) error {
	if state.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return state.tp.Shutdown(ctx)
}

// Tracer returns the installed tracer (noop until a successful Init).
func Tracer() trace.Tracer {
	return state.tracer
}

// Enabled reports whether a real (non-noop) tracer is installed.
func Enabled() bool {
	return state.enabled
}

// discardExporter satisfies SpanExporter for the "stdout" development
// setting without pulling in the stdouttrace module.
type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discardExporter) Shutdown(context.Context) error                             { return nil }
