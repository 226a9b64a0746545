package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemReserve(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	item, err := NewItem("Widget A", 5, now)
	require.NoError(t, err)

	require.ErrorIs(t, item.Reserve(0, now), ErrInvalidQuantity)
	require.ErrorIs(t, item.Reserve(6, now), ErrInsufficientStock)
	assert.Equal(t, 5, item.Quantity)

	later := now.Add(time.Second)
	require.NoError(t, item.Reserve(5, later))
	assert.Equal(t, 0, item.Quantity)
	assert.Equal(t, later, item.UpdatedAt)

	require.NoError(t, item.Release(2, later))
	assert.Equal(t, 2, item.Quantity)
	require.ErrorIs(t, item.Release(-1, later), ErrInvalidQuantity)
}

func TestNewItemValidates(t *testing.T) {
	t.Parallel()

	_, err := NewItem("", 1, time.Now())
	require.ErrorIs(t, err, ErrInvalidProduct)
	_, err = NewItem("Widget", -1, time.Now())
	require.ErrorIs(t, err, ErrInvalidQuantity)
}
