package inventory

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	dominv "github.com/Zhima-Mochi/minishop-saga/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	clk := clock.Fixed(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := NewService(memory.NewInventoryRepository(clk), clk, nil)
	seeded, err := svc.SeedIfEmpty(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)
	return svc
}

func TestReserveAndRelease(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	item, err := svc.Reserve(ctx, StockInput{Product: "Widget C", Quantity: 500})
	require.NoError(t, err)
	assert.Equal(t, 1500, item.Quantity)

	item, err = svc.Release(ctx, StockInput{Product: "Widget C", Quantity: 500})
	require.NoError(t, err)
	assert.Equal(t, 2000, item.Quantity)
}

func TestReserveErrors(t *testing.T) {
	t.Parallel()
	svc := newService(t)

	tests := []struct {
		name   string
		in     StockInput
		reason string
		status int
	}{
		{"zero quantity", StockInput{Product: "Widget A", Quantity: 0}, apperr.ReasonInvalidQuantity, http.StatusBadRequest},
		{"missing product", StockInput{Quantity: 1}, apperr.ReasonInvalidRequest, http.StatusBadRequest},
		{"unknown product", StockInput{Product: "Gizmo", Quantity: 1}, apperr.ReasonProductNotFound, http.StatusNotFound},
		{"too many", StockInput{Product: "Widget B", Quantity: 5001}, apperr.ReasonInsufficientStock, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Reserve(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.reason, apperr.Kind(err))
			assert.Equal(t, tt.status, apperr.HTTPStatus(err))
		})
	}

	item, err := svc.Get(context.Background(), "Widget B")
	require.NoError(t, err)
	assert.Equal(t, 5000, item.Quantity, "a rejected reservation leaves stock untouched")
}

func TestListAndSeedOnce(t *testing.T) {
	t.Parallel()
	svc := newService(t)

	seeded, err := svc.SeedIfEmpty(context.Background())
	require.NoError(t, err)
	assert.False(t, seeded)

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, len(dominv.Seed))
	byProduct := map[string]int{}
	for _, it := range items {
		byProduct[it.Product] = it.Quantity
	}
	assert.Equal(t, map[string]int{"Widget A": 10000, "Widget B": 5000, "Widget C": 2000}, byProduct)
}
