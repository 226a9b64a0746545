package inventory

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-saga/internal/application"
	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	dominv "github.com/Zhima-Mochi/minishop-saga/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	inventoryService  = "inventory-service"
	useCaseReserve    = "inventory.reserve"
	useCaseRelease    = "inventory.release"
	useCaseGet        = "inventory.get"
	useCaseList       = "inventory.list"
	eventReserved     = "inventory.reserved"
	eventReleased     = "inventory.released"
	statusStockFailed = "RESERVE_FAILED"
)

// Service owns the stock ledger. Reserve and Release are atomic per product:
// the repository checks availability and decrements in one step.
type Service struct {
	repo  dominv.Repository
	clock clock.Clock
	inst  application.Instruments
}

func NewService(repo dominv.Repository, clk clock.Clock, tel observability.Observability) *Service {
	if clk == nil {
		clk = clock.System()
	}
	return &Service{repo: repo, clock: clk, inst: application.NewInstruments(tel, inventoryService)}
}

type StockInput struct {
	Product  string
	Quantity int
}

// Reserve takes quantity units of product out of stock, or fails leaving stock unchanged.
func (s *Service) Reserve(ctx context.Context, in StockInput) (_ *dominv.Item, err error) {
	ctx, call := s.begin(ctx, useCaseReserve, "ReserveStock", in)
	defer func() { call.End(err) }()

	if verr := validate(in); verr != nil {
		call.Fail("VALIDATION_FAILED")
		return nil, verr
	}
	item, rerr := s.repo.Reserve(ctx, in.Product, in.Quantity)
	if rerr != nil {
		call.Fail(statusStockFailed)
		return nil, classify(rerr)
	}
	call.With(observability.F("remaining", item.Quantity))
	call.Span().AddEvent(eventReserved, trace.WithAttributes(attribute.Int("inventory.remaining", item.Quantity)))
	return item, nil
}

// Release puts quantity units back. Used as the compensation for Reserve.
func (s *Service) Release(ctx context.Context, in StockInput) (_ *dominv.Item, err error) {
	ctx, call := s.begin(ctx, useCaseRelease, "ReleaseStock", in)
	defer func() { call.End(err) }()

	if verr := validate(in); verr != nil {
		call.Fail("VALIDATION_FAILED")
		return nil, verr
	}
	item, rerr := s.repo.Release(ctx, in.Product, in.Quantity)
	if rerr != nil {
		call.Fail("RELEASE_FAILED")
		return nil, classify(rerr)
	}
	call.With(observability.F("remaining", item.Quantity))
	call.Span().AddEvent(eventReleased, trace.WithAttributes(attribute.Int("inventory.remaining", item.Quantity)))
	return item, nil
}

func (s *Service) Get(ctx context.Context, product string) (_ *dominv.Item, err error) {
	ctx, call := s.inst.Begin(ctx, useCaseGet, "GetStock", attribute.String("product", product))
	call.With(observability.F("product", product))
	defer func() { call.End(err) }()

	if product == "" {
		call.Fail("VALIDATION_FAILED")
		return nil, apperr.Validation(apperr.ReasonInvalidRequest, "product is required")
	}
	item, gerr := s.repo.Get(ctx, product)
	if gerr != nil {
		call.Fail("LOOKUP_FAILED")
		return nil, classify(gerr)
	}
	return item, nil
}

func (s *Service) List(ctx context.Context) (_ []*dominv.Item, err error) {
	ctx, call := s.inst.Begin(ctx, useCaseList, "ListStock")
	defer func() { call.End(err) }()

	items, lerr := s.repo.List(ctx)
	if lerr != nil {
		call.Fail("LIST_FAILED")
		return nil, classify(lerr)
	}
	call.With(observability.F("items", len(items)))
	return items, nil
}

// SeedIfEmpty loads the default catalogue into an empty ledger.
func (s *Service) SeedIfEmpty(ctx context.Context) (bool, error) {
	now := s.clock.Now()
	items := make([]dominv.Item, 0, len(dominv.Seed))
	for _, it := range dominv.Seed {
		it.CreatedAt = now
		items = append(items, it)
	}
	seeded, err := s.repo.SeedIfEmpty(ctx, items)
	if err != nil {
		return false, apperr.Wrap(apperr.ClassPersistenceFailure, apperr.ReasonPersistenceFailed, "inventory seed failed", err)
	}
	if seeded {
		s.inst.Logger().Info("inventory_seeded", observability.F("items", len(items)))
	}
	return seeded, nil
}

func (s *Service) begin(ctx context.Context, useCase, span string, in StockInput) (context.Context, *application.Call) {
	ctx, call := s.inst.Begin(ctx, useCase, span,
		attribute.String("product", in.Product),
		attribute.Int("quantity", in.Quantity),
	)
	call.With(observability.F("product", in.Product), observability.F("quantity", in.Quantity))
	return ctx, call
}

func validate(in StockInput) error {
	if in.Product == "" {
		return apperr.Validation(apperr.ReasonInvalidRequest, "product is required")
	}
	if in.Quantity <= 0 {
		return apperr.Validation(apperr.ReasonInvalidQuantity, "quantity must be greater than zero")
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, dominv.ErrNotFound):
		return apperr.Wrap(apperr.ClassNotFound, apperr.ReasonProductNotFound, "product not found", err)
	case errors.Is(err, dominv.ErrInsufficientStock):
		return apperr.Wrap(apperr.ClassBusinessRejection, apperr.ReasonInsufficientStock, "insufficient stock", err)
	case errors.Is(err, dominv.ErrInvalidQuantity):
		return apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidQuantity, "quantity must be greater than zero", err)
	case errors.Is(err, dominv.ErrInvalidProduct):
		return apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidRequest, "product is required", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.DependencyUnavailable("inventory store timed out", err)
	default:
		return apperr.Wrap(apperr.ClassPersistenceFailure, apperr.ReasonPersistenceFailed, "inventory store failed", err)
	}
}
