package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	domorder "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-saga/internal/domain/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestInventoryClientMapsResponses(t *testing.T) {
	t.Parallel()

	var got stockRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		switch got.Product {
		case "Widget A":
			reply(w, http.StatusOK, map[string]any{"status": "Reserved"})
		case "Gizmo":
			reply(w, http.StatusNotFound, errorBody{Error: "product not found", Code: apperr.ReasonProductNotFound})
		case "Widget B":
			reply(w, http.StatusBadRequest, errorBody{Error: "insufficient stock", Code: apperr.ReasonInsufficientStock})
		default:
			reply(w, http.StatusInternalServerError, errorBody{Error: "db down", Code: apperr.ReasonPersistenceFailed})
		}
	}))
	t.Cleanup(srv.Close)
	c := NewInventoryClient(srv.URL+"/", nil, nil)
	ctx := context.Background()

	require.NoError(t, c.Reserve(ctx, "Widget A", 3))
	assert.Equal(t, stockRequest{Product: "Widget A", Quantity: 3}, got)

	err := c.Reserve(ctx, "Gizmo", 1)
	assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))
	assert.Equal(t, apperr.ReasonProductNotFound, apperr.Kind(err))

	err = c.Reserve(ctx, "Widget B", 1)
	assert.Equal(t, apperr.ClassBusinessRejection, apperr.ClassOf(err))
	assert.Equal(t, apperr.ReasonInsufficientStock, apperr.Kind(err))

	err = c.Release(ctx, "Widget Z", 1)
	assert.Equal(t, apperr.ClassDependencyUnavailable, apperr.ClassOf(err))
	assert.NotContains(t, apperr.Message(err), "db down")
}

func TestClientUnreachableAndTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewInventoryClient(srv.URL, nil, nil).Reserve(ctx, "Widget A", 1)
	assert.Equal(t, apperr.ClassDependencyUnavailable, apperr.ClassOf(err))

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = NewPaymentClient(closed.URL, nil, nil).Authorize(context.Background(), "x", decimal.NewFromInt(1))
	assert.Equal(t, apperr.ClassDependencyUnavailable, apperr.ClassOf(err))
}

func TestPaymentClientDecodesConfirmation(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		var in paymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if !in.Amount.IsPositive() {
			reply(w, http.StatusBadRequest, errorBody{Error: "amount must be greater than zero", Code: apperr.ReasonInvalidAmount})
			return
		}
		reply(w, http.StatusOK, confirmationBody{
			PaymentID: "pay-7", OrderID: in.OrderID, Amount: in.Amount, Timestamp: ts, Status: dompay.StatusSuccess,
		})
	}))
	t.Cleanup(srv.Close)
	c := NewPaymentClient(srv.URL, nil, nil)

	conf, err := c.Authorize(context.Background(), "o-1", decimal.RequireFromString("12.50"))
	require.NoError(t, err)
	assert.Equal(t, "pay-7", conf.PaymentID)
	assert.True(t, conf.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, ts, conf.Timestamp)

	_, err = c.Authorize(context.Background(), "o-1", decimal.Zero)
	assert.Equal(t, apperr.ClassBusinessRejection, apperr.ClassOf(err))
	assert.Equal(t, apperr.ReasonInvalidAmount, apperr.Kind(err))
}

func TestOrderClientUpdateStatus(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var in statusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		switch r.URL.Path {
		case "/orders/known/status":
			reply(w, http.StatusOK, orderBody{ID: "known", Product: "Widget A", Quantity: 2, Status: in.Status, CreatedAt: created})
		case "/orders/done/status":
			reply(w, http.StatusConflict, errorBody{Error: "order is already in a terminal status", Code: apperr.ReasonInvalidTransition})
		default:
			reply(w, http.StatusNotFound, errorBody{Error: "order not found", Code: apperr.ReasonNotFound})
		}
	}))
	t.Cleanup(srv.Close)
	c := NewOrderClient(srv.URL, nil, nil)

	o, err := c.UpdateStatus(context.Background(), "known", domorder.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCompleted, o.Status)
	assert.Equal(t, created, o.CreatedAt)

	_, err = c.UpdateStatus(context.Background(), "done", domorder.StatusCompleted)
	assert.Equal(t, apperr.ClassConflict, apperr.ClassOf(err))

	_, err = c.UpdateStatus(context.Background(), "missing", domorder.StatusCompleted)
	assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))
}
