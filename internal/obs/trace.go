package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const flowTracer = "authgate/auth"

// WithTrace adds trace_id and span_id of the span in ctx, if any.
func WithTrace(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// StartFlow opens the span of one auth flow ("signup", "refresh", ...).
func StartFlow(ctx context.Context, flow string) (context.Context, trace.Span) {
	return otel.Tracer(flowTracer).Start(ctx, "auth."+flow,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("auth.flow", flow)),
	)
}

// EndFlow records the HTTP status the flow answered with and ends span.
// Client rejections stay Unset; only 5xx marks the span as failed.
func EndFlow(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("auth.status", status))
	if status >= 500 {
		span.SetStatus(codes.Error, "auth flow failed")
	}
	span.End()
}

// FailFlow attaches err to the flow span carried by ctx.
func FailFlow(ctx context.Context, err error) {
	trace.SpanFromContext(ctx).RecordError(err)
}
