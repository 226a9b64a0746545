package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id::text, product, quantity, status, created_at, updated_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

var _ domain.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
INSERT INTO orders (id, product, quantity, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.Product, o.Quantity, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return domain.ErrConflict
	default:
		return fmt.Errorf("insert order: %w", err)
	}
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, notFound(err, "get order")
	}
	return o, nil
}

// Update locks the row with SELECT ... FOR UPDATE so concurrent status changes
// to the same order apply one after the other.
func (r *OrderRepository) Update(ctx context.Context, id string, mutate domain.Mutation) (*domain.Order, error) {
	var out *domain.Order
	err := withTx(ctx, r.pool, func(ctx context.Context) error {
		q := conn(ctx, r.pool)
		o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, "lock order")
		}
		changed, err := mutate(o)
		if err != nil {
			return err
		}
		if changed {
			if _, err := q.Exec(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
				id, string(o.Status), o.UpdatedAt); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrderRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Order, int, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	limit := f.Limit
	if limit <= 0 {
		limit = domain.DefaultPageSize
	}

	q := conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1::text IS NULL OR status = $1)`, status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at, id
LIMIT $2 OFFSET $3`, status, limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o       domain.Order
		status  string
		updated *time.Time
	)
	if err := row.Scan(&o.ID, &o.Product, &o.Quantity, &status, &o.CreatedAt, &updated); err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	if updated != nil {
		u := updated.UTC()
		o.UpdatedAt = &u
	}
	return &o, nil
}

// notFound maps a missing row, or an id that is not a UUID, to domain.ErrNotFound.
func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
