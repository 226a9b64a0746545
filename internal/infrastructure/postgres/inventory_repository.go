package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	domain "github.com/Zhima-Mochi/minishop-saga/internal/domain/inventory"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const itemColumns = `product, quantity, created_at, updated_at`

// InventoryRepository is the stock ledger on PostgreSQL. Reserve is a single
// conditional UPDATE, so the availability check and the decrement cannot interleave.
type InventoryRepository struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

func NewInventoryRepository(pool *pgxpool.Pool, clk clock.Clock) *InventoryRepository {
	if clk == nil {
		clk = clock.System()
	}
	return &InventoryRepository{pool: pool, clock: clk}
}

var _ domain.Repository = (*InventoryRepository)(nil)

func (r *InventoryRepository) Get(ctx context.Context, product string) (*domain.Item, error) {
	item, err := scanItem(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+itemColumns+` FROM inventory WHERE product = $1`, product))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (r *InventoryRepository) List(ctx context.Context) ([]*domain.Item, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+itemColumns+` FROM inventory ORDER BY product`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (r *InventoryRepository) Reserve(ctx context.Context, product string, quantity int) (*domain.Item, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	item, err := scanItem(conn(ctx, r.pool).QueryRow(ctx, `
UPDATE inventory
SET quantity = quantity - $2, updated_at = $3
WHERE product = $1 AND quantity >= $2
RETURNING `+itemColumns, product, quantity, r.clock.Now().UTC()))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	// No row matched: either the product is unknown or there is not enough stock.
	if _, gerr := r.Get(ctx, product); gerr != nil {
		return nil, gerr
	}
	return nil, domain.ErrInsufficientStock
}

func (r *InventoryRepository) Release(ctx context.Context, product string, quantity int) (*domain.Item, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	item, err := scanItem(conn(ctx, r.pool).QueryRow(ctx, `
UPDATE inventory
SET quantity = quantity + $2, updated_at = $3
WHERE product = $1
RETURNING `+itemColumns, product, quantity, r.clock.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("release stock: %w", err)
	}
	return item, nil
}

// SeedIfEmpty runs in one transaction holding a table lock, so two starting
// processes cannot both seed.
func (r *InventoryRepository) SeedIfEmpty(ctx context.Context, items []domain.Item) (bool, error) {
	var seeded bool
	err := withTx(ctx, r.pool, func(ctx context.Context) error {
		q := conn(ctx, r.pool)
		if _, err := q.Exec(ctx, `LOCK TABLE inventory IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock inventory: %w", err)
		}
		var n int
		if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM inventory`).Scan(&n); err != nil {
			return fmt.Errorf("count inventory: %w", err)
		}
		if n > 0 {
			return nil
		}
		now := r.clock.Now().UTC()
		for _, seed := range items {
			item, err := domain.NewItem(seed.Product, seed.Quantity, now)
			if err != nil {
				return err
			}
			if _, err := q.Exec(ctx,
				`INSERT INTO inventory (product, quantity, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
				item.Product, item.Quantity, item.CreatedAt, item.UpdatedAt,
			); err != nil {
				return fmt.Errorf("seed %s: %w", item.Product, err)
			}
		}
		seeded = true
		return nil
	})
	return seeded, err
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var item domain.Item
	if err := row.Scan(&item.Product, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}
