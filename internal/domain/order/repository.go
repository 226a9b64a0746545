package order

import "context"

// Mutation edits an order inside the store's per-row critical section.
// Returning changed=false skips the write.
type Mutation func(o *Order) (changed bool, err error)

// ListFilter selects a page of orders, optionally by status.
type ListFilter struct {
	Status *Status
	Offset int
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// Update applies mutate while conflicting writers to the same order are held off.
	Update(ctx context.Context, id string, mutate Mutation) (*Order, error)
	// List returns the requested page ordered by creation time, plus the total matching count.
	List(ctx context.Context, f ListFilter) ([]*Order, int, error)
}
