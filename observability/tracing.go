package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hookline/hookline"

// Tracer provides OpenTelemetry tracing for delivery attempts.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new hookline tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartAttemptSpan starts a span for a delivery attempt.
func (t *Tracer) StartAttemptSpan(ctx context.Context, jobID, eventID, subscriptionID string, attempt int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "hookline.delivery_attempt",
		trace.WithAttributes(
			attribute.String("hookline.job_id", jobID),
			attribute.String("hookline.event_id", eventID),
			attribute.String("hookline.subscription_id", subscriptionID),
			attribute.Int("hookline.attempt", attempt),
		),
	)
}

// EndAttemptSpan ends an attempt span with result attributes.
func (t *Tracer) EndAttemptSpan(span trace.Span, status string, statusCode, latencyMs int, errDetail string) {
	span.SetAttributes(
		attribute.String("hookline.status", status),
		attribute.Int("http.status_code", statusCode),
		attribute.Int("hookline.latency_ms", latencyMs),
	)
	if errDetail != "" {
		span.SetAttributes(attribute.String("hookline.error", errDetail))
	}
	span.End()
}
