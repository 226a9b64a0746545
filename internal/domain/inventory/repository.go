package inventory

import "context"

// Repository is the stock ledger store. Reserve and Release are atomic per product:
// the availability check and the write happen in one step.
type Repository interface {
	Get(ctx context.Context, product string) (*Item, error)
	List(ctx context.Context) ([]*Item, error)
	Reserve(ctx context.Context, product string, quantity int) (*Item, error)
	Release(ctx context.Context, product string, quantity int) (*Item, error)
	// SeedIfEmpty inserts items only when the ledger holds no products.
	SeedIfEmpty(ctx context.Context, items []Item) (bool, error)
}
