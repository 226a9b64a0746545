package payment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/application"
	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	dompay "github.com/Zhima-Mochi/minishop-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService       = "payment-service"
	useCasePaymentAuth   = "payment.authorize"
	paymentSpanName      = "AuthorizePayment"
	statusAmountInvalid  = "AMOUNT_INVALID"
	statusPaymentDecline = "PAYMENT_DECLINED"
)

// Simulated settles every positive charge, except for a configurable share of
// requests it declines at random.
type Simulated struct {
	mu          sync.Mutex
	random      *rand.Rand
	declineRate float64
	clock       clock.Clock
	inst        application.Instruments
}

type Option func(*Simulated)

// WithDeclineRate sets the share of charges to decline, clamped to [0, 1].
func WithDeclineRate(rate float64) Option {
	return func(s *Simulated) {
		switch {
		case rate < 0:
			rate = 0
		case rate > 1:
			rate = 1
		}
		s.declineRate = rate
	}
}

// WithRandSource makes the decline draw deterministic.
func WithRandSource(src rand.Source) Option {
	return func(s *Simulated) { s.random = rand.New(src) }
}

func WithClock(clk clock.Clock) Option {
	return func(s *Simulated) { s.clock = clk }
}

func NewSimulated(tel observability.Observability, opts ...Option) *Simulated {
	s := &Simulated{
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:  clock.System(),
		inst:   application.NewInstruments(tel, paymentService),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ dompay.Authorizer = (*Simulated)(nil)

func (s *Simulated) Authorize(ctx context.Context, orderID string, amount decimal.Decimal) (_ *dompay.Confirmation, err error) {
	ctx, call := s.inst.Begin(ctx, useCasePaymentAuth, paymentSpanName,
		attribute.String("order.id", orderID),
		attribute.String("payment.amount", amount.String()),
	)
	call.With(
		observability.F("order_id", orderID),
		observability.F("amount", amount.String()),
	)
	defer func() { call.End(err) }()

	if orderID == "" {
		call.Fail("ORDER_ID_MISSING")
		return nil, apperr.Validation(apperr.ReasonInvalidRequest, "orderId is required")
	}
	if verr := dompay.ValidateAmount(amount); verr != nil {
		call.Fail(statusAmountInvalid)
		return nil, apperr.Wrap(apperr.ClassBusinessRejection, apperr.ReasonInvalidAmount,
			"amount must be greater than zero", verr)
	}
	if cerr := ctx.Err(); cerr != nil {
		call.Fail("CANCELED")
		return nil, cerr
	}
	if s.declined() {
		call.Fail(statusPaymentDecline)
		return nil, apperr.Wrap(apperr.ClassBusinessRejection, apperr.ReasonPaymentDeclined,
			"payment declined", dompay.ErrDeclined)
	}

	conf := &dompay.Confirmation{
		PaymentID: uuid.NewString(),
		OrderID:   orderID,
		Amount:    amount,
		Timestamp: s.clock.Now().UTC(),
		Status:    dompay.StatusSuccess,
	}
	call.With(observability.F("payment_id", conf.PaymentID))
	return conf, nil
}

func (s *Simulated) declined() bool {
	if s.declineRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.random.Float64() < s.declineRate
}
