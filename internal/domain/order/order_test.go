package order

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New("id", "Widget A", 0, t0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New("id", "Widget A", -3, t0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New("id", "  ", 1, t0)
	require.ErrorIs(t, err, ErrInvalidProduct)

	o, err := New("id", "Widget A", 3, t0)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, t0, o.CreatedAt)
	assert.Nil(t, o.UpdatedAt)
}

func TestTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		from, to    Status
		wantChanged bool
		wantErr     error
	}{
		{name: "pending to completed", from: StatusPending, to: StatusCompleted, wantChanged: true},
		{name: "pending to cancelled", from: StatusPending, to: StatusCancelled, wantChanged: true},
		{name: "pending to pending", from: StatusPending, to: StatusPending},
		{name: "completed again", from: StatusCompleted, to: StatusCompleted},
		{name: "cancelled again", from: StatusCancelled, to: StatusCancelled},
		{name: "completed to cancelled", from: StatusCompleted, to: StatusCancelled, wantErr: ErrInvalidTransition},
		{name: "cancelled to completed", from: StatusCancelled, to: StatusCompleted, wantErr: ErrInvalidTransition},
		{name: "completed to pending", from: StatusCompleted, to: StatusPending, wantErr: ErrInvalidTransition},
		{name: "unknown target", from: StatusPending, to: Status("Shipped"), wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := &Order{ID: "id", Product: "p", Quantity: 1, Status: tt.from, CreatedAt: t0}
			changed, err := o.TransitionTo(tt.to, t0.Add(time.Minute))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, o.Status)
				assert.Nil(t, o.UpdatedAt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.to, o.Status)
			if tt.wantChanged {
				require.NotNil(t, o.UpdatedAt)
				assert.Equal(t, t0.Add(time.Minute), *o.UpdatedAt)
			} else {
				assert.Nil(t, o.UpdatedAt)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Status{
		"Pending":   StatusPending,
		"completed": StatusCompleted,
		"CANCELLED": StatusCancelled,
		"canceled":  StatusCancelled,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseStatus("shipped")
	require.ErrorIs(t, err, ErrInvalidStatus)
	assert.False(t, Status("pending").Valid())
	assert.True(t, CanTransition(StatusPending, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
}

func TestCreatedEventPayload(t *testing.T) {
	t.Parallel()

	const id = "3f2b3c1e-8d4a-4b8e-9f11-2a6c1b7e9d10"
	evt := NewCreatedEvent(&Order{ID: id})
	assert.Equal(t, []byte(id), evt.Payload())

	parsed, err := ParseCreatedEvent([]byte(`"` + id + `"`))
	require.NoError(t, err)
	assert.Equal(t, id, parsed.OrderID)

	_, err = ParseCreatedEvent([]byte("not-a-guid"))
	require.Error(t, err)
	_, err = ParseCreatedEvent(nil)
	require.Error(t, err)
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Page{Number: 1, Size: 10}, NormalizePage(0, 0))
	assert.Equal(t, Page{Number: 1, Size: 10}, NormalizePage(-4, -1))
	p := NormalizePage(3, 25)
	assert.Equal(t, 50, p.Offset())

	assert.Equal(t, Page{Number: 3, Size: MaxPageSize}, NormalizePage(3, 1<<62))
	assert.Equal(t, math.MaxInt, NormalizePage(math.MaxInt, 50).Offset())
	assert.Equal(t, 0, Page{Number: 5}.Offset())
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	ts := t0
	o := &Order{ID: "id", UpdatedAt: &ts}
	c := o.Clone()
	*c.UpdatedAt = t0.Add(time.Hour)
	assert.Equal(t, t0, *o.UpdatedAt)
}
