package order

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	domain "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
)

var seedOrders = []struct {
	Product  string
	Quantity int
}{
	{"Initial A", 10},
	{"Initial B", 20},
	{"Initial C", 15},
}

// SeedIfEmpty stores three Pending sample orders when the store has none.
func SeedIfEmpty(ctx context.Context, repo domain.Repository, ids IDGenerator, clk clock.Clock) (bool, error) {
	_, total, err := repo.List(ctx, domain.ListFilter{Limit: 1})
	if err != nil {
		return false, fmt.Errorf("order seed: count: %w", err)
	}
	if total > 0 {
		return false, nil
	}
	now := clk.Now()
	for i, s := range seedOrders {
		o, err := domain.New(ids.NewID(), s.Product, s.Quantity, now.Add(time.Duration(i)*time.Millisecond))
		if err != nil {
			return false, fmt.Errorf("order seed: %w", err)
		}
		if err := repo.Insert(ctx, o); err != nil {
			return false, fmt.Errorf("order seed: insert: %w", err)
		}
	}
	return true, nil
}
