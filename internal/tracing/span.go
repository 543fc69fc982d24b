package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartQuerySpan starts a client span around one query submission.
func StartQuerySpan(ctx context.Context, tracer trace.Tracer, system, invocation string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, system+" query", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("db.system", system))
	if invocation != "" {
		span.SetAttributes(attribute.String("querymeter.invocation", invocation))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
