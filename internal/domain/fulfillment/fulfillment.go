package fulfillment

import (
	"context"
	"time"
)

// Record is the side effect produced once per fulfilled order.
type Record struct {
	OrderID     string
	FulfilledAt time.Time
}

// Store keeps fulfillment records. Create is idempotent: a second call for the
// same order returns created=false and leaves the first record untouched.
type Store interface {
	Create(ctx context.Context, r Record) (created bool, err error)
}
