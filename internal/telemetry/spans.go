package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentName = "mediaagency"

// StartRunSpan starts a span for one runner invocation.
func StartRunSpan(ctx context.Context, runID, groupID, userID string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("group.id", groupID),
			attribute.String("user.id", userID),
		),
	)
}

// StartTurnSpan starts a span for one agent turn within a run.
func StartTurnSpan(ctx context.Context, runID, agentType string, turn int) (context.Context, trace.Span) {
	return otel.Tracer(instrumentName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("agent.type", agentType),
			attribute.Int("turn", turn),
		),
	)
}
