package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-saga/internal/application"
	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	domain "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderUpdateStatus = "order.update_status"

// UpdateStatusUseCase moves an order along its state machine. Asking for the
// status the order already has succeeds without a write, so redelivered
// completion callbacks are harmless.
type UpdateStatusUseCase struct {
	repo      domain.Repository
	clock     clock.Clock
	inst      application.Instruments
	completed observability.Counter // orders_completed_total
}

func NewUpdateStatusUseCase(repo domain.Repository, clk clock.Clock, tel observability.Observability) *UpdateStatusUseCase {
	tel = observability.OrNop(tel)
	if clk == nil {
		clk = clock.System()
	}
	return &UpdateStatusUseCase{
		repo:      repo,
		clock:     clk,
		inst:      application.NewInstruments(tel, orderService),
		completed: tel.Metrics().Counter(observability.MOrdersCompleted),
	}
}

type UpdateStatusInput struct {
	OrderID string
	Status  domain.Status
}

type UpdateStatusResult struct {
	Order   *domain.Order
	Changed bool
}

func (uc *UpdateStatusUseCase) Execute(ctx context.Context, cmd UpdateStatusInput) (_ *UpdateStatusResult, err error) {
	ctx, call := uc.inst.Begin(ctx, useCaseOrderUpdateStatus, "UpdateOrderStatus",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.status_target", string(cmd.Status)),
	)
	call.With(
		observability.F("order_id", cmd.OrderID),
		observability.F("target_status", string(cmd.Status)),
	)
	defer func() { call.End(err) }()

	if err := validateID(cmd.OrderID); err != nil {
		call.Fail("ORDER_ID_INVALID")
		return nil, err
	}
	if !cmd.Status.Valid() {
		call.Fail("STATUS_INVALID")
		return nil, apperr.Validation(apperr.ReasonInvalidStatus, "status must be one of Pending, Completed, Cancelled")
	}

	var changed bool
	updated, rerr := uc.repo.Update(ctx, cmd.OrderID, func(o *domain.Order) (bool, error) {
		c, terr := o.TransitionTo(cmd.Status, uc.clock.Now())
		changed = c
		return c, terr
	})
	switch {
	case rerr == nil:
	case errors.Is(rerr, domain.ErrNotFound):
		call.Fail("ORDER_NOT_FOUND")
		return nil, apperr.Wrap(apperr.ClassNotFound, apperr.ReasonNotFound, "order not found", rerr)
	case errors.Is(rerr, domain.ErrInvalidTransition):
		call.Fail("INVALID_TRANSITION")
		return nil, apperr.Wrap(apperr.ClassConflict, apperr.ReasonInvalidTransition,
			"order is already in a terminal status", rerr)
	default:
		call.Fail("REPO_UPDATE_FAILED")
		return nil, apperr.Wrap(apperr.ClassPersistenceFailure, apperr.ReasonPersistenceFailed,
			"order could not be updated", rerr)
	}

	if !changed {
		call.Note("ALREADY_IN_STATUS")
	} else if updated.Status == domain.StatusCompleted {
		uc.completed.Add(1)
	}
	call.With(observability.F("changed", changed))
	return &UpdateStatusResult{Order: updated, Changed: changed}, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidID, "order id must be a UUID", err)
	}
	return nil
}
