package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartAPISpan creates a client span for one backend request.
//
// Usage:
//
//	ctx, span := telemetry.StartAPISpan(ctx, http.MethodGet, "/users/me")
//	defer span.End()
func StartAPISpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("api")
	ctx, span := tracer.Start(ctx, "api."+method+" "+path, trace.WithSpanKind(trace.SpanKindClient))

	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.String("component", "api"),
	)

	return ctx, span
}

// StartSessionSpan creates a span for a session operation (reload, login, logout).
func StartSessionSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("session")
	ctx, span := tracer.Start(ctx, "session."+operation)

	span.SetAttributes(
		attribute.String("operation", operation),
		attribute.String("component", "session"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
