package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-saga/internal/domain/payment"
)

type IDGenerator interface {
	NewID() string
}

// StockLedger is the inventory role as seen by the orchestrator.
type StockLedger interface {
	Reserve(ctx context.Context, product string, quantity int) error
	Release(ctx context.Context, product string, quantity int) error
}

type PaymentAuthorizer interface {
	payment.Authorizer
}
