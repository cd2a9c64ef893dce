package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/fsm/statemachine"

// startSendSpan creates the span covering one send. The caller ends it.
//
//nolint:spancheck // Span lifecycle managed by caller
func startSendSpan(ctx context.Context, machine, machineID, from, message string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "statemachine.send",
		trace.WithAttributes(
			attribute.String("machine", machine),
			attribute.String("machine_id", machineID),
			attribute.String("from_state", from),
			attribute.String("message", message),
		))
}

// startActionSpan creates a child span for the action of the target state.
//
//nolint:spancheck // Span lifecycle managed by caller
func startActionSpan(ctx context.Context, state string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "action."+state,
		trace.WithAttributes(attribute.String("state", state)))
}

// finishSpan records the outcome on span and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("reason", errorReason(err)))
	} else {
		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}
