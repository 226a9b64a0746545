package workerpresentation

import (
	"context"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/event"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability/logctx"

	"github.com/google/uuid"
)

// WithEventContext continues the publisher's trace from the message headers and
// injects a message-scoped logger for the handler.
// Dynamic fields only: event_id (generated if empty), topic, queue and
// trace_id/span_id when the headers carried a valid context.
func WithEventContext(base observability.Logger, tel observability.Observability) event.Middleware {
	if base == nil {
		base = observability.OrNop(tel).Logger()
	}
	return func(next event.Handler) event.Handler {
		return func(ctx context.Context, m event.Message) error {
			ctx = oteltrace.Extract(ctx, m.Headers)

			evtID := m.ID
			if evtID == "" {
				evtID = uuid.NewString()
			}
			fields := []observability.Field{
				observability.F("event_id", evtID),
				observability.F("topic", m.Topic),
				observability.F("queue", m.Queue),
			}
			fields = append(fields, observability.TraceFields(ctx)...)

			return next(logctx.With(ctx, base.With(fields...)), m)
		}
	}
}
