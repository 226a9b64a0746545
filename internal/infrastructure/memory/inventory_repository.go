package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	domain "github.com/Zhima-Mochi/minishop-saga/internal/domain/inventory"
)

// InventoryRepository is an in-memory stock ledger. Reserve checks and decrements
// under the write lock, so concurrent reservations never oversell.
type InventoryRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.Item
	clock clock.Clock
}

func NewInventoryRepository(clk clock.Clock) *InventoryRepository {
	if clk == nil {
		clk = clock.System()
	}
	return &InventoryRepository{items: make(map[string]*domain.Item), clock: clk}
}

func (r *InventoryRepository) Get(ctx context.Context, product string) (*domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[product]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneItem(item), nil
}

func (r *InventoryRepository) List(ctx context.Context) ([]*domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]*domain.Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, cloneItem(item))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Product < out[j].Product })
	return out, nil
}

func (r *InventoryRepository) Reserve(ctx context.Context, product string, quantity int) (*domain.Item, error) {
	return r.apply(ctx, product, func(item *domain.Item) error {
		return item.Reserve(quantity, r.clock.Now())
	})
}

func (r *InventoryRepository) Release(ctx context.Context, product string, quantity int) (*domain.Item, error) {
	return r.apply(ctx, product, func(item *domain.Item) error {
		return item.Release(quantity, r.clock.Now())
	})
}

func (r *InventoryRepository) apply(ctx context.Context, product string, fn func(*domain.Item) error) (*domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[product]
	if !ok {
		return nil, domain.ErrNotFound
	}
	working := cloneItem(item)
	if err := fn(working); err != nil {
		return nil, err
	}
	r.items[product] = working
	return cloneItem(working), nil
}

// Put inserts or replaces an item.
func (r *InventoryRepository) Put(item domain.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.Product] = cloneItem(&item)
}

func (r *InventoryRepository) SeedIfEmpty(ctx context.Context, items []domain.Item) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) > 0 {
		return false, nil
	}
	now := r.clock.Now()
	for _, seed := range items {
		item, err := domain.NewItem(seed.Product, seed.Quantity, now)
		if err != nil {
			return false, err
		}
		r.items[item.Product] = item
	}
	return true, nil
}

func cloneItem(item *domain.Item) *domain.Item {
	if item == nil {
		return nil
	}
	clone := *item
	return &clone
}
