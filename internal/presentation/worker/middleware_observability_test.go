package workerpresentation

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/event"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability/logctx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldLogger struct {
	observability.Logger
	fields map[string]any
}

func (l *fieldLogger) With(fields ...observability.Field) observability.Logger {
	next := &fieldLogger{Logger: l.Logger, fields: map[string]any{}}
	for k, v := range l.fields {
		next.fields[k] = v
	}
	for _, f := range fields {
		next.fields[f.Key] = f.Value
	}
	return next
}

func TestWithEventContextBindsMessageFields(t *testing.T) {
	oteltrace.InstallPropagator()
	base := &fieldLogger{Logger: observability.NopLogger(), fields: map[string]any{}}

	var got *fieldLogger
	h := WithEventContext(base, nil)(func(ctx context.Context, _ event.Message) error {
		l, ok := logctx.From(ctx).(*fieldLogger)
		require.True(t, ok)
		got = l
		return nil
	})

	err := h(context.Background(), event.Message{
		ID:      "m-1",
		Topic:   "orders",
		Queue:   "fulfillment-queue",
		Attempt: 2,
		Headers: map[string]string{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m-1", got.fields["event_id"])
	assert.Equal(t, "orders", got.fields["topic"])
	assert.Equal(t, "fulfillment-queue", got.fields["queue"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got.fields["trace_id"])
}

func TestWithEventContextGeneratesEventID(t *testing.T) {
	base := &fieldLogger{Logger: observability.NopLogger(), fields: map[string]any{}}

	var got *fieldLogger
	h := WithEventContext(base, nil)(func(ctx context.Context, _ event.Message) error {
		got, _ = logctx.From(ctx).(*fieldLogger)
		return assert.AnError
	})

	err := h(context.Background(), event.Message{Topic: "orders", Queue: "q"})
	require.ErrorIs(t, err, assert.AnError)
	require.NotNil(t, got)
	assert.NotEmpty(t, got.fields["event_id"])
	assert.NotContains(t, got.fields, "trace_id")
}
