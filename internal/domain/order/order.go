package order

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: already exists")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidProduct    = errors.New("order: product is required")
	ErrInvalidStatus     = errors.New("order: unknown status")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

// Status is the order lifecycle state shared by the order and fulfillment roles.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus accepts the wire values case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Order struct {
	ID        string
	Product   string
	Quantity  int
	Status    Status
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// New builds a Pending order stamped with now.
func New(id, product string, quantity int, now time.Time) (*Order, error) {
	if strings.TrimSpace(product) == "" {
		return nil, ErrInvalidProduct
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &Order{
		ID:        id,
		Product:   product,
		Quantity:  quantity,
		Status:    StatusPending,
		CreatedAt: now.UTC(),
	}, nil
}

// TransitionTo moves the order to target. Reaching a state the order is already in
// reports changed=false with no error; leaving a terminal state is ErrInvalidTransition.
func (o *Order) TransitionTo(target Status, now time.Time) (changed bool, err error) {
	next, err := stateOf(o.Status).on(target)
	if err != nil {
		return false, err
	}
	if next == o.Status {
		return false, nil
	}
	o.Status = next
	ts := now.UTC()
	o.UpdatedAt = &ts
	return true, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.UpdatedAt != nil {
		ts := *o.UpdatedAt
		c.UpdatedAt = &ts
	}
	return &c
}
