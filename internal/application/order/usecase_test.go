package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	"github.com/Zhima-Mochi/minishop-saga/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprint(s.n.Add(1)))).String()
}

// ledger adapts the in-memory stock repository to the orchestrator port,
// classifying errors the way the inventory HTTP client does.
type ledger struct {
	repo     *memory.InventoryRepository
	reserves atomic.Int32
	releases atomic.Int32
	err      error
}

func (l *ledger) Reserve(ctx context.Context, product string, qty int) error {
	l.reserves.Add(1)
	if l.err != nil {
		return l.err
	}
	_, err := l.repo.Reserve(ctx, product, qty)
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return apperr.Wrap(apperr.ClassBusinessRejection, apperr.ReasonInsufficientStock, "insufficient stock", err)
	case errors.Is(err, inventory.ErrNotFound):
		return apperr.Wrap(apperr.ClassNotFound, apperr.ReasonProductNotFound, "product not found", err)
	}
	return err
}

func (l *ledger) Release(ctx context.Context, product string, qty int) error {
	l.releases.Add(1)
	_, err := l.repo.Release(ctx, product, qty)
	return err
}

type payments struct {
	calls   atomic.Int32
	err     error
	amounts []decimal.Decimal
	mu      sync.Mutex
}

func (p *payments) Authorize(_ context.Context, orderID string, amount decimal.Decimal) (*payment.Confirmation, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.amounts = append(p.amounts, amount)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &payment.Confirmation{PaymentID: "pay-1", OrderID: orderID, Amount: amount, Status: payment.StatusSuccess}, nil
}

type publisher struct {
	mu       sync.Mutex
	err      error
	payloads []string
	topics   []string
}

func (p *publisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, string(payload))
	return nil
}

type failingRepo struct {
	*memory.OrderRepository
}

func (failingRepo) Insert(context.Context, *domain.Order) error {
	return errors.New("connection reset by peer")
}

type fixture struct {
	repo      *memory.OrderRepository
	stock     *memory.InventoryRepository
	ledger    *ledger
	payments  *payments
	publisher *publisher
	uc        *CreateOrderUseCase
}

func newFixture(t *testing.T, mutate ...func(*CreateOrderDeps)) *fixture {
	t.Helper()
	stock := memory.NewInventoryRepository(clock.Fixed(t0))
	stock.Put(inventory.Item{Product: "Widget A", Quantity: 10})

	f := &fixture{
		repo:      memory.NewOrderRepository(),
		stock:     stock,
		ledger:    &ledger{repo: stock},
		payments:  &payments{},
		publisher: &publisher{},
	}
	deps := CreateOrderDeps{
		Repo:      f.repo,
		IDs:       &seqIDs{},
		Ledger:    f.ledger,
		Payments:  f.payments,
		Publisher: f.publisher,
		Clock:     clock.Fixed(t0),
		Topic:     "orders",
		UnitPrice: decimal.NewFromInt(10),
	}
	for _, m := range mutate {
		m(&deps)
	}
	f.uc = NewCreateOrderUseCase(deps, nil)
	return f
}

func (f *fixture) stockOf(t *testing.T, product string) int {
	t.Helper()
	item, err := f.stock.Get(context.Background(), product)
	require.NoError(t, err)
	return item.Quantity
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	_, total, err := f.repo.List(context.Background(), domain.ListFilter{Limit: 100})
	require.NoError(t, err)
	return total
}

func TestCreateOrderHappyPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.uc.Execute(context.Background(), CreateOrderInput{Product: "Widget A", Quantity: 3})
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	assert.Equal(t, domain.StatusPending, res.Order.Status)
	assert.Equal(t, "Widget A", res.Order.Product)
	assert.Equal(t, 3, res.Order.Quantity)
	assert.Equal(t, t0, res.Order.CreatedAt)

	stored, err := f.repo.Get(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Order, stored)

	assert.Equal(t, 7, f.stockOf(t, "Widget A"))
	require.Len(t, f.payments.amounts, 1)
	assert.True(t, f.payments.amounts[0].Equal(decimal.NewFromInt(30)))
	assert.Equal(t, []string{res.Order.ID}, f.publisher.payloads)
	assert.Equal(t, []string{"orders"}, f.publisher.topics)
}

func TestCreateOrderRejectsBadQuantityBeforeAnyCall(t *testing.T) {
	t.Parallel()

	for _, qty := range []int{0, -1} {
		f := newFixture(t)
		_, err := f.uc.Execute(context.Background(), CreateOrderInput{Product: "Widget A", Quantity: qty})

		require.Error(t, err)
		assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))
		assert.Equal(t, apperr.ReasonInvalidQuantity, apperr.Kind(err))
		assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))
		assert.Zero(t, f.ledger.reserves.Load())
		assert.Zero(t, f.payments.calls.Load())
		assert.Zero(t, f.orderCount(t))
	}
}

func TestCreateOrderReservationFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		product string
		qty     int
	}{
		{name: "insufficient stock", product: "Widget A", qty: 11},
		{name: "unknown product", product: "Gadget", qty: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			res, err := f.uc.Execute(context.Background(), CreateOrderInput{Product: tt.product, Quantity: tt.qty})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, apperr.ReasonReservationFailed, apperr.Kind(err))
			assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))

			assert.Zero(t, f.orderCount(t), "no order may exist after a failed reservation")
			assert.Zero(t, f.payments.calls.Load(), "payment must not be attempted")
			assert.Zero(t, f.ledger.releases.Load())
			assert.Equal(t, 10, f.stockOf(t, "Widget A"))
			assert.Empty(t, f.publisher.payloads)
		})
	}
}

func TestCreateOrderPaymentFailureReleasesStock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.payments.err = apperr.New(apperr.ClassBusinessRejection, apperr.ReasonPaymentDeclined, "declined")

	res, err := f.uc.Execute(context.Background(), CreateOrderInput{Product: "Widget A", Quantity: 4})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, apperr.ReasonPaymentFailed, apperr.Kind(err))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stepAuthorize, se.Step)
	assert.NoError(t, se.CompensationErr)

	assert.Zero(t, f.orderCount(t))
	assert.Equal(t, int32(1), f.ledger.releases.Load())
	assert.Equal(t, 10, f.stockOf(t, "Widget A"), "reserved stock is fully rolled back")
	assert.Empty(t, f.publisher.payloads)
}

func TestCreateOrderDependencyUnavailable(t *testing.T) {
	t.Parallel()

	t.Run("inventory", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.ledger.err = apperr.DependencyUnavailable("inventory service unavailable", errors.New("connection refused"))

		_, err := f.uc.Execute(context.Background(), CreateOrderInput{Product: "Widget A", Quantity: 1})
		require.Error(t, err)
		assert.Equal(t, apperr.ClassDependencyUnavailable, apperr.ClassOf(err))
		assert.GreaterOrEqual(t, apperr.HTTPStatus(err), 500)
		assert.Zero(t, f.payments.calls.Load())
	})

	t.Run("payment timeout", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(d *CreateOrderDeps) { d.DependencyTimeout = 20 * time.Millisecond })
		f.payments.err = context.DeadlineExceeded

		_, err := f.uc.Execute(context.Background(), CreateOrderInput{Product: "Widget A", Quantity: 2})
		require.Error(t, err)
		assert.Equal(t, apperr.ClassDependencyUnavailable, apperr.ClassOf(err))
		assert.Equal(t, apperr.ReasonDependencyUnavailable, apperr.Kind(err))
		assert.Equal(t, 10, f.stockOf(t, "Widget A"))
		assert.Zero(t, f.orderCount(t))
	})
}

func TestCreateOrderPersistenceFailureCompensatesAndDoesNotPublish(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(d *CreateOrderDeps) {
		d.Repo = failingRepo{memory.NewOrderRepository()}
	})

	_, err := f.uc.Execute(context.Background(), CreateOrderInput{Product: "Widget A", Quantity: 5})
	require.Error(t, err)
	assert.Equal(t, apperr.ClassPersistenceFailure, apperr.ClassOf(err))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
	assert.NotContains(t, apperr.Message(err), "connection reset")

	assert.Empty(t, f.publisher.payloads, "no event without a stored order")
	assert.Equal(t, 10, f.stockOf(t, "Widget A"))
}

func TestCreateOrderPublishFailureIsPartialSuccess(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	res, err := f.uc.Execute(context.Background(), CreateOrderInput{Product: "Widget A", Quantity: 2})
	require.Error(t, err)
	require.NotNil(t, res, "the stored order is still returned")
	assert.Equal(t, apperr.ClassDeliveryFailure, apperr.ClassOf(err))
	assert.Equal(t, apperr.ReasonPublishFailed, apperr.Kind(err))

	stored, gerr := f.repo.Get(context.Background(), res.Order.ID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, 8, f.stockOf(t, "Widget A"))
}

func TestCreateOrderConcurrentRequestsDoNotOversell(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.uc.Execute(context.Background(), CreateOrderInput{Product: "Widget A", Quantity: 3}); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), ok.Load())
	assert.Equal(t, 1, f.stockOf(t, "Widget A"))
	assert.Equal(t, 3, f.orderCount(t))
}
