package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	domorder "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"github.com/shopspring/decimal"
)

type stockRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// InventoryClient is the order role's view of the stock ledger.
type InventoryClient struct{ c client }

func NewInventoryClient(baseURL string, hc *http.Client, tel observability.Observability) *InventoryClient {
	return &InventoryClient{c: newClient("inventory", baseURL, hc, tel)}
}

func (ic *InventoryClient) Reserve(ctx context.Context, product string, quantity int) error {
	return ic.c.do(ctx, http.MethodPost, "/inventory/reserve", "/inventory/reserve",
		stockRequest{Product: product, Quantity: quantity}, nil)
}

func (ic *InventoryClient) Release(ctx context.Context, product string, quantity int) error {
	return ic.c.do(ctx, http.MethodPost, "/inventory/release", "/inventory/release",
		stockRequest{Product: product, Quantity: quantity}, nil)
}

type paymentRequest struct {
	OrderID string          `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
}

type confirmationBody struct {
	PaymentID string          `json:"paymentId"`
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Status    dompay.Status   `json:"status"`
}

// PaymentClient calls the payment role.
type PaymentClient struct{ c client }

func NewPaymentClient(baseURL string, hc *http.Client, tel observability.Observability) *PaymentClient {
	return &PaymentClient{c: newClient("payment", baseURL, hc, tel)}
}

var _ dompay.Authorizer = (*PaymentClient)(nil)

func (pc *PaymentClient) Authorize(ctx context.Context, orderID string, amount decimal.Decimal) (*dompay.Confirmation, error) {
	var out confirmationBody
	if err := pc.c.do(ctx, http.MethodPost, "/payments", "/payments",
		paymentRequest{OrderID: orderID, Amount: amount}, &out); err != nil {
		return nil, err
	}
	return &dompay.Confirmation{
		PaymentID: out.PaymentID,
		OrderID:   out.OrderID,
		Amount:    out.Amount,
		Timestamp: out.Timestamp,
		Status:    out.Status,
	}, nil
}

type statusRequest struct {
	Status domorder.Status `json:"status"`
}

type orderBody struct {
	ID        string          `json:"id"`
	Product   string          `json:"product"`
	Quantity  int             `json:"quantity"`
	Status    domorder.Status `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt *time.Time      `json:"updatedAt"`
}

// OrderClient is the fulfillment worker's callback into the order role.
type OrderClient struct{ c client }

func NewOrderClient(baseURL string, hc *http.Client, tel observability.Observability) *OrderClient {
	return &OrderClient{c: newClient("order", baseURL, hc, tel)}
}

func (oc *OrderClient) UpdateStatus(ctx context.Context, orderID string, status domorder.Status) (*domorder.Order, error) {
	var out orderBody
	path := "/orders/" + url.PathEscape(orderID) + "/status"
	if err := oc.c.do(ctx, http.MethodPut, "/orders/{id}/status", path, statusRequest{Status: status}, &out); err != nil {
		return nil, err
	}
	return &domorder.Order{
		ID:        out.ID,
		Product:   out.Product,
		Quantity:  out.Quantity,
		Status:    out.Status,
		CreatedAt: out.CreatedAt,
		UpdatedAt: out.UpdatedAt,
	}, nil
}
