package order

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/clock"
	domain "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-saga/internal/infrastructure/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingOrder(t *testing.T, repo domain.Repository) *domain.Order {
	t.Helper()
	o, err := domain.New(uuid.NewString(), "Widget B", 2, t0)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), o))
	return o
}

func TestUpdateStatusCompletesOnceAndIsIdempotent(t *testing.T) {
	t.Parallel()
	repo := memory.NewOrderRepository()
	o := pendingOrder(t, repo)
	later := t0.Add(time.Minute)
	uc := NewUpdateStatusUseCase(repo, clock.Fixed(later), nil)

	first, err := uc.Execute(context.Background(), UpdateStatusInput{OrderID: o.ID, Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, domain.StatusCompleted, first.Order.Status)
	require.NotNil(t, first.Order.UpdatedAt)
	assert.Equal(t, later, *first.Order.UpdatedAt)

	again, err := uc.Execute(context.Background(), UpdateStatusInput{OrderID: o.ID, Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, domain.StatusCompleted, again.Order.Status)
}

func TestUpdateStatusErrors(t *testing.T) {
	t.Parallel()
	repo := memory.NewOrderRepository()
	uc := NewUpdateStatusUseCase(repo, clock.Fixed(t0), nil)

	cancelled := pendingOrder(t, repo)
	_, err := uc.Execute(context.Background(), UpdateStatusInput{OrderID: cancelled.ID, Status: domain.StatusCancelled})
	require.NoError(t, err)

	tests := []struct {
		name   string
		in     UpdateStatusInput
		reason string
		status int
	}{
		{
			name:   "malformed id",
			in:     UpdateStatusInput{OrderID: "not-a-uuid", Status: domain.StatusCompleted},
			reason: apperr.ReasonInvalidID,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown status",
			in:     UpdateStatusInput{OrderID: cancelled.ID, Status: domain.Status("Shipped")},
			reason: apperr.ReasonInvalidStatus,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing order",
			in:     UpdateStatusInput{OrderID: uuid.NewString(), Status: domain.StatusCompleted},
			reason: apperr.ReasonNotFound,
			status: http.StatusNotFound,
		},
		{
			name:   "leaving a terminal status",
			in:     UpdateStatusInput{OrderID: cancelled.ID, Status: domain.StatusCompleted},
			reason: apperr.ReasonInvalidTransition,
			status: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := uc.Execute(context.Background(), tt.in)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.reason, apperr.Kind(err))
			assert.Equal(t, tt.status, apperr.HTTPStatus(err))
		})
	}

	stored, err := repo.Get(context.Background(), cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
}
