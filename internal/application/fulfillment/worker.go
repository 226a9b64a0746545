package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/application"
	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	"github.com/Zhima-Mochi/minishop-saga/internal/domain/event"
	domfulfillment "github.com/Zhima-Mochi/minishop-saga/internal/domain/fulfillment"
	domorder "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	fulfillmentService = "fulfillment-service"
	useCaseHandle      = "fulfillment.handle"
	handleSpanName     = "HandleOrderCreated"

	defaultQueue         = "fulfillment"
	defaultCallbackLimit = 5 * time.Second
)

// Message outcomes, the fulfillment_messages_total{outcome} label values.
const (
	OutcomeCompleted = "completed"
	OutcomeDuplicate = "duplicate"
	OutcomeDropped   = "dropped"
	OutcomeRejected  = "rejected"
	OutcomeRetry     = "retry"
)

// OrderStatusUpdater is the callback into the order role.
type OrderStatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, status domorder.Status) (*domorder.Order, error)
}

type WorkerDeps struct {
	Store  domfulfillment.Store
	Orders OrderStatusUpdater
	Clock  clock.Clock

	Topic           string
	Queue           string
	CallbackTimeout time.Duration
}

// Worker consumes order-created events, records the fulfillment once per order
// and marks the order Completed. Deliveries are at-least-once, so every step
// must tolerate seeing the same order again.
type Worker struct {
	deps     WorkerDeps
	inst     application.Instruments
	messages observability.Counter // fulfillment_messages_total{outcome}
}

func NewWorker(deps WorkerDeps, tel observability.Observability) *Worker {
	tel = observability.OrNop(tel)
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Topic == "" {
		deps.Topic = "orders"
	}
	if deps.Queue == "" {
		deps.Queue = defaultQueue
	}
	if deps.CallbackTimeout <= 0 {
		deps.CallbackTimeout = defaultCallbackLimit
	}
	return &Worker{
		deps:     deps,
		inst:     application.NewInstruments(tel, fulfillmentService),
		messages: tel.Metrics().Counter(observability.MFulfillmentMessages),
	}
}

// Start binds the worker's queue to the orders topic.
func (w *Worker) Start(sub event.Subscriber, mws ...event.Middleware) error {
	h := event.Handler(w.Handle)
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	if err := sub.Subscribe(w.deps.Topic, w.deps.Queue, h); err != nil {
		return fmt.Errorf("fulfillment: subscribe %s/%s: %w", w.deps.Topic, w.deps.Queue, err)
	}
	w.inst.Logger().Info("fulfillment_worker_started",
		observability.F("topic", w.deps.Topic),
		observability.F("queue", w.deps.Queue),
	)
	return nil
}

// Handle processes one delivery. A nil return acknowledges the message.
func (w *Worker) Handle(ctx context.Context, m event.Message) (err error) {
	ctx, call := w.inst.Begin(ctx, useCaseHandle, handleSpanName,
		attribute.String("messaging.message.id", m.ID),
		attribute.String("messaging.destination", m.Queue),
		attribute.Int("messaging.attempt", m.Attempt),
	)
	call.With(
		observability.F("message_id", m.ID),
		observability.F("attempt", m.Attempt),
	)
	outcome := OutcomeCompleted
	defer func() {
		call.Outcome(outcome)
		w.messages.Add(1, observability.L("outcome", outcome))
		call.End(err)
	}()

	evt, perr := domorder.ParseCreatedEvent(m.Payload)
	if perr != nil {
		// Redelivering a malformed payload can never succeed.
		outcome = OutcomeDropped
		call.Note("MALFORMED_PAYLOAD")
		call.With(observability.F("parse_error", perr.Error()))
		return nil
	}
	call.With(observability.F("order_id", evt.OrderID))
	call.Span().SetAttributes(attribute.String("order.id", evt.OrderID))

	created, serr := w.deps.Store.Create(ctx, domfulfillment.Record{
		OrderID:     evt.OrderID,
		FulfilledAt: w.deps.Clock.Now().UTC(),
	})
	if serr != nil {
		outcome = OutcomeRetry
		call.Fail("RECORD_FAILED")
		return fmt.Errorf("fulfillment: record %s: %w", evt.OrderID, serr)
	}
	if !created {
		outcome = OutcomeDuplicate
		call.Note("ALREADY_FULFILLED")
	}

	// The status callback runs even for duplicates: an earlier delivery may
	// have recorded the fulfillment and then failed to reach the order role.
	cctx, cancel := context.WithTimeout(ctx, w.deps.CallbackTimeout)
	defer cancel()
	start := time.Now()
	_, uerr := w.deps.Orders.UpdateStatus(cctx, evt.OrderID, domorder.StatusCompleted)
	w.inst.External("order", "update_status", start, uerr)
	if uerr == nil {
		return nil
	}

	switch apperr.ClassOf(uerr) {
	case apperr.ClassNotFound, apperr.ClassConflict, apperr.ClassValidation:
		outcome = OutcomeRejected
		call.Note("CALLBACK_REJECTED")
		call.With(
			observability.F("callback_error", uerr.Error()),
			observability.F("reason", apperr.Kind(uerr)),
		)
		return nil
	default:
		outcome = OutcomeRetry
		call.Fail("CALLBACK_FAILED")
		return fmt.Errorf("fulfillment: complete order %s: %w", evt.OrderID, uerr)
	}
}
