package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "swarmforge"

// StartTaskSpan starts a span covering one task execution attempt.
func StartTaskSpan(ctx context.Context, taskID, scenarioID string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task.attempt",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("scenario.id", scenarioID),
			attribute.Int("task.attempt", attempt),
		),
	)
}

// StartDispatchSpan starts a span covering one dispatch pass.
func StartDispatchSpan(ctx context.Context, batch int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.Int("dispatch.batch", batch),
		),
	)
}
