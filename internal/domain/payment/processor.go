package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("payment: amount must be greater than zero")
	ErrDeclined      = errors.New("payment: declined")
)

type Status string

const (
	StatusSuccess  Status = "Success"
	StatusDeclined Status = "Declined"
)

// Confirmation is the receipt for a settled charge. It is not retained by callers.
type Confirmation struct {
	PaymentID string
	OrderID   string
	Amount    decimal.Decimal
	Timestamp time.Time
	Status    Status
}

// Authorizer settles a charge for an order.
type Authorizer interface {
	Authorize(ctx context.Context, orderID string, amount decimal.Decimal) (*Confirmation, error)
}

// ValidateAmount rejects zero and negative charges.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
