package inventory

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInvalidProduct    = errors.New("inventory: product is required")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Item is the stock held for one product. Quantity never drops below zero.
type Item struct {
	Product   string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewItem(product string, quantity int, now time.Time) (*Item, error) {
	if strings.TrimSpace(product) == "" {
		return nil, ErrInvalidProduct
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	now = now.UTC()
	return &Item{Product: product, Quantity: quantity, CreatedAt: now, UpdatedAt: now}, nil
}

// Reserve takes quantity out of stock, or fails without changing it.
func (i *Item) Reserve(quantity int, now time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > i.Quantity {
		return ErrInsufficientStock
	}
	i.Quantity -= quantity
	i.UpdatedAt = now.UTC()
	return nil
}

// Release puts quantity back into stock.
func (i *Item) Release(quantity int, now time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i.Quantity += quantity
	i.UpdatedAt = now.UTC()
	return nil
}

// Seed is the catalogue loaded into an empty ledger.
var Seed = []Item{
	{Product: "Widget A", Quantity: 10000},
	{Product: "Widget B", Quantity: 5000},
	{Product: "Widget C", Quantity: 2000},
}
