package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan opens an internal span under ctx's current trace.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartServerSpan opens a server-kind span for an incoming request.
func StartServerSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SetSpanError records err on span and marks its status failed.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks span successful.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Attribute keys stamped on dispatch-path spans.
var (
	AttrResourceName = attribute.Key("tetra.resource.name")
	AttrResourceID   = attribute.Key("tetra.resource.id")
	AttrResourceKind = attribute.Key("tetra.resource.kind")
	AttrEndpoint     = attribute.Key("tetra.endpoint")
	AttrRequestID    = attribute.Key("tetra.request_id")
	AttrDurationMs   = attribute.Key("tetra.duration_ms")
	AttrAttempt      = attribute.Key("tetra.attempt")
)
