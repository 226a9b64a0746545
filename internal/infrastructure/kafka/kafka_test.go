package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestRetryDelayIsCapped(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100*time.Millisecond, retryDelay(100*time.Millisecond, 1))
	assert.Equal(t, 400*time.Millisecond, retryDelay(100*time.Millisecond, 3))
	assert.Equal(t, maxRetryDelay, retryDelay(100*time.Millisecond, 30))
}

func TestTraceContextRoundTripsThroughHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := headerMap(injectHeaders(ctx, nil))
	require.Contains(t, headers, "traceparent")

	got := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), propagation.MapCarrier(headers)))
	assert.Equal(t, traceID, got.TraceID())
}

func TestHandleUntilAckedRetriesThenStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := NewSubscriber(nil, nil, WithRetryDelay(time.Millisecond))

	calls := 0
	ok := s.handleUntilAcked(context.Background(), s.log, binding{queue: "q", h: func(_ context.Context, m event.Message) error {
		calls++
		if m.Attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	}}, event.Message{ID: "orders/0/1"})
	assert.True(t, ok)
	assert.Equal(t, 3, calls)

	ctx, cancel := context.WithCancel(context.Background())
	ok = s.handleUntilAcked(ctx, s.log, binding{queue: "q", h: func(context.Context, event.Message) error {
		cancel()
		return errors.New("down")
	}}, event.Message{ID: "orders/0/2"})
	assert.False(t, ok)
}

func TestDeliverRecoversPanics(t *testing.T) {
	t.Parallel()
	s := NewSubscriber(nil, nil)

	err := s.deliver(context.Background(), func(context.Context, event.Message) error {
		panic("boom")
	}, event.Message{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestSubscribeAfterStartIsRejected(t *testing.T) {
	t.Parallel()
	s := NewSubscriber([]string{"localhost:1"}, nil)
	require.Error(t, s.Subscribe("orders", "q", nil))

	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })
	assert.Error(t, s.Subscribe("orders", "q", func(context.Context, event.Message) error { return nil }))
}
