package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-saga/internal/application"
	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	domain "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// QueryService serves read-only order lookups.
type QueryService struct {
	repo domain.Repository
	inst application.Instruments
}

func NewQueryService(repo domain.Repository, tel observability.Observability) *QueryService {
	return &QueryService{repo: repo, inst: application.NewInstruments(tel, orderService)}
}

func (s *QueryService) Get(ctx context.Context, id string) (_ *domain.Order, err error) {
	ctx, call := s.inst.Begin(ctx, "order.get", "GetOrder", attribute.String("order.id", id))
	call.With(observability.F("order_id", id))
	defer func() { call.End(err) }()

	if err := validateID(id); err != nil {
		call.Fail("ORDER_ID_INVALID")
		return nil, err
	}
	o, gerr := s.repo.Get(ctx, id)
	switch {
	case gerr == nil:
		return o, nil
	case errors.Is(gerr, domain.ErrNotFound):
		call.Fail("ORDER_NOT_FOUND")
		return nil, apperr.Wrap(apperr.ClassNotFound, apperr.ReasonNotFound, "order not found", gerr)
	default:
		call.Fail("REPO_GET_FAILED")
		return nil, apperr.Wrap(apperr.ClassPersistenceFailure, apperr.ReasonPersistenceFailed, "order lookup failed", gerr)
	}
}

type ListInput struct {
	Status   *domain.Status
	Page     int
	PageSize int
}

type ListResult struct {
	Page   domain.Page
	Total  int
	Orders []*domain.Order
}

// List returns one page of orders. Non-positive page and size fall back to 1 and 10.
func (s *QueryService) List(ctx context.Context, in ListInput) (_ *ListResult, err error) {
	page := domain.NormalizePage(in.Page, in.PageSize)
	ctx, call := s.inst.Begin(ctx, "order.list", "ListOrders",
		attribute.Int("page", page.Number),
		attribute.Int("page_size", page.Size),
	)
	call.With(observability.F("page", page.Number), observability.F("page_size", page.Size))
	defer func() { call.End(err) }()

	if in.Status != nil && !in.Status.Valid() {
		call.Fail("STATUS_INVALID")
		return nil, apperr.Validation(apperr.ReasonInvalidStatus, "status must be one of Pending, Completed, Cancelled")
	}

	orders, total, lerr := s.repo.List(ctx, domain.ListFilter{
		Status: in.Status,
		Offset: page.Offset(),
		Limit:  page.Size,
	})
	if lerr != nil {
		call.Fail("REPO_LIST_FAILED")
		return nil, apperr.Wrap(apperr.ClassPersistenceFailure, apperr.ReasonPersistenceFailed, "order listing failed", lerr)
	}
	call.With(observability.F("total", total))
	return &ListResult{Page: page, Total: total, Orders: orders}, nil
}
