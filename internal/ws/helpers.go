package ws

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"chatlink-service/internal/observability"
)

func traceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.HasTraceID() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// publishConnEvent fans connection lifecycle events out over AMQP, best effort.
func publishConnEvent(ctx context.Context, eventName string, info ConnInfo, token string) {
	envelope := observability.EventEnvelope{
		Service:   "chatlink-service",
		EventType: "ws",
		EventName: eventName,
		Payload: map[string]string{
			"conn_id": info.ConnID,
			"ip":      info.IP,
			"token":   token,
		},
	}
	_ = observability.PublishEvent(ctx, "ws.link."+eventName, envelope, observability.BuildHeaders(info.RequestID, info.TraceID))
}
