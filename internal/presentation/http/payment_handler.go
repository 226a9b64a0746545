package httppresentation

import (
	"net/http"
	"time"

	dompay "github.com/Zhima-Mochi/minishop-saga/internal/domain/payment"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	payments dompay.Authorizer
}

func NewPaymentHandler(payments dompay.Authorizer) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) Routes(r chi.Router) {
	r.Post("/payments", h.handleAuthorize)
}

type paymentRequest struct {
	OrderID string          `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
}

type confirmationResponse struct {
	PaymentID string          `json:"paymentId"`
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Status    dompay.Status   `json:"status"`
}

func (h *PaymentHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.payments.Authorize(r.Context(), req.OrderID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse{
		PaymentID: c.PaymentID,
		OrderID:   c.OrderID,
		Amount:    c.Amount,
		Timestamp: c.Timestamp,
		Status:    c.Status,
	})
}
