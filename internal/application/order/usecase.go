package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/application"
	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	domain "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-saga/internal/domain/event"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"

	stepReserve   = "reserve_stock"
	stepAuthorize = "authorize_payment"
	stepPersist   = "persist_order"

	publishPeer     = "event_channel"
	publishEndpoint = "order.created"

	DefaultDependencyTimeout = 5 * time.Second
	defaultPublishTimeout    = 2 * time.Second
)

// CreateOrderDeps are the collaborators of the order creation saga.
type CreateOrderDeps struct {
	Repo      domain.Repository
	IDs       IDGenerator
	Ledger    StockLedger
	Payments  PaymentAuthorizer
	Publisher event.Publisher
	Clock     clock.Clock

	Topic             string
	UnitPrice         decimal.Decimal
	DependencyTimeout time.Duration
	PublishTimeout    time.Duration
}

// CreateOrderUseCase reserves stock, charges the customer, stores the order and
// announces it. Stock is released again when a later step fails.
type CreateOrderUseCase struct {
	deps CreateOrderDeps
	saga *Saga
	inst application.Instruments

	requested     observability.Counter // orders_requested_total
	publishFailed observability.Counter // order_event_publish_failed_total{event}
}

func NewCreateOrderUseCase(deps CreateOrderDeps, tel observability.Observability) *CreateOrderUseCase {
	tel = observability.OrNop(tel)
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.UnitPrice.IsZero() {
		deps.UnitPrice = decimal.NewFromInt(10)
	}
	if deps.DependencyTimeout <= 0 {
		deps.DependencyTimeout = DefaultDependencyTimeout
	}
	if deps.PublishTimeout <= 0 {
		deps.PublishTimeout = defaultPublishTimeout
	}
	if deps.Topic == "" {
		deps.Topic = "orders"
	}
	return &CreateOrderUseCase{
		deps:          deps,
		saga:          NewSaga(tel),
		inst:          application.NewInstruments(tel, orderService),
		requested:     tel.Metrics().Counter(observability.MOrdersRequested),
		publishFailed: tel.Metrics().Counter(observability.MOrderPublishFailed),
	}
}

type CreateOrderInput struct {
	Product  string
	Quantity int
}

type CreateOrderResult struct {
	Order *domain.Order
}

// Execute runs the saga. When the event cannot be published the created order is
// returned together with a delivery failure error.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, call := uc.inst.Begin(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.product", cmd.Product),
		attribute.Int("order.quantity", cmd.Quantity),
	)
	call.With(
		observability.F("product", cmd.Product),
		observability.F("quantity", cmd.Quantity),
	)
	defer func() { call.End(err) }()

	uc.requested.Add(1)

	id := uc.deps.IDs.NewID()
	entity, derr := domain.New(id, cmd.Product, cmd.Quantity, uc.deps.Clock.Now())
	if derr != nil {
		call.Fail("VALIDATION_FAILED")
		return nil, validationError(derr)
	}
	amount := uc.deps.UnitPrice.Mul(decimal.NewFromInt(int64(cmd.Quantity)))
	call.With(observability.F("order_id", id), observability.F("amount", amount.String()))
	call.Span().SetAttributes(attribute.String("order.id", id))

	steps := []Step{
		{
			Name: stepReserve,
			Action: func(ctx context.Context) error {
				return uc.call(ctx, "inventory", "reserve", func(ctx context.Context) error {
					return uc.deps.Ledger.Reserve(ctx, entity.Product, entity.Quantity)
				}, classifyReservation)
			},
			Compensate: func(ctx context.Context) error {
				return uc.call(ctx, "inventory", "release", func(ctx context.Context) error {
					return uc.deps.Ledger.Release(ctx, entity.Product, entity.Quantity)
				}, classifyDependency("inventory"))
			},
		},
		{
			Name: stepAuthorize,
			Action: func(ctx context.Context) error {
				return uc.call(ctx, "payment", "authorize", func(ctx context.Context) error {
					_, err := uc.deps.Payments.Authorize(ctx, entity.ID, amount)
					return err
				}, classifyPayment)
			},
		},
		{
			Name: stepPersist,
			Action: func(ctx context.Context) error {
				if err := uc.deps.Repo.Insert(ctx, entity); err != nil {
					return apperr.Wrap(apperr.ClassPersistenceFailure, apperr.ReasonPersistenceFailed,
						"order could not be stored", err)
				}
				return nil
			},
		},
	}

	results, serr := uc.saga.Run(ctx, steps)
	call.With(observability.F("steps", results))
	if serr != nil {
		var se *StepError
		if errors.As(serr, &se) {
			call.Fail(failureStatus(se))
			if se.CompensationErr != nil {
				call.With(observability.F("compensation_error", se.CompensationErr.Error()))
			}
		} else {
			call.Fail("SAGA_FAILED")
		}
		return nil, serr
	}

	result := &CreateOrderResult{Order: entity.Clone()}
	call.Span().AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", id)))

	if perr := uc.publish(ctx, entity); perr != nil {
		call.Fail("EVENT_PUBLISH_FAILED")
		uc.publishFailed.Add(1, observability.L("event", domain.CreatedEvent{}.EventName()))
		return result, apperr.Wrap(apperr.ClassDeliveryFailure, apperr.ReasonPublishFailed,
			"order created but the fulfillment event was not published", perr)
	}
	return result, nil
}

// call bounds fn by the dependency timeout, records it as an external request and classifies its error.
func (uc *CreateOrderUseCase) call(ctx context.Context, peer, endpoint string, fn func(context.Context) error, classify func(error) error) error {
	cctx, cancel := context.WithTimeout(ctx, uc.deps.DependencyTimeout)
	defer cancel()

	start := time.Now()
	err := fn(cctx)
	if err != nil {
		err = classify(err)
	}
	uc.inst.External(peer, endpoint, start, err)
	return err
}

func (uc *CreateOrderUseCase) publish(ctx context.Context, o *domain.Order) error {
	if uc.deps.Publisher == nil {
		return errors.New("order: no event publisher configured")
	}
	pctx, cancel := context.WithTimeout(ctx, uc.deps.PublishTimeout)
	defer cancel()

	start := time.Now()
	err := uc.deps.Publisher.Publish(pctx, uc.deps.Topic, domain.NewCreatedEvent(o).Payload())
	if err == nil && pctx.Err() != nil {
		err = pctx.Err()
	}
	uc.inst.External(publishPeer, publishEndpoint, start, err)
	return err
}

func failureStatus(se *StepError) string {
	switch se.Step {
	case stepReserve:
		if apperr.ClassOf(se.Err) == apperr.ClassDependencyUnavailable {
			return "INVENTORY_UNAVAILABLE"
		}
		return "RESERVATION_FAILED"
	case stepAuthorize:
		if apperr.ClassOf(se.Err) == apperr.ClassDependencyUnavailable {
			return "PAYMENT_UNAVAILABLE"
		}
		return "PAYMENT_FAILED"
	case stepPersist:
		return "REPO_INSERT_FAILED"
	default:
		return "SAGA_FAILED"
	}
}

func validationError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidQuantity, "quantity must be greater than zero", err)
	case errors.Is(err, domain.ErrInvalidProduct):
		return apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidRequest, "product is required", err)
	default:
		return apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidRequest, "invalid order request", err)
	}
}

// classifyReservation turns a stock ledger failure into ReservationFailed, unless
// the ledger could not be reached at all.
func classifyReservation(err error) error {
	switch apperr.ClassOf(err) {
	case apperr.ClassBusinessRejection, apperr.ClassNotFound, apperr.ClassValidation:
		return apperr.Wrap(apperr.ClassBusinessRejection, apperr.ReasonReservationFailed,
			fmt.Sprintf("stock reservation failed: %s", apperr.Kind(err)), err)
	default:
		return classifyDependency("inventory")(err)
	}
}

func classifyPayment(err error) error {
	switch apperr.ClassOf(err) {
	case apperr.ClassBusinessRejection, apperr.ClassValidation:
		return apperr.Wrap(apperr.ClassBusinessRejection, apperr.ReasonPaymentFailed,
			fmt.Sprintf("payment failed: %s", apperr.Kind(err)), err)
	default:
		return classifyDependency("payment")(err)
	}
}

func classifyDependency(peer string) func(error) error {
	return func(err error) error {
		if ae, ok := apperr.As(err); ok && ae.Class == apperr.ClassDependencyUnavailable {
			return err
		}
		return apperr.DependencyUnavailable(peer+" service unavailable", err)
	}
}
