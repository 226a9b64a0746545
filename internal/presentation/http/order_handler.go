package httppresentation

import (
	"net/http"
	"strconv"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-saga/internal/application/order"
	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	domorder "github.com/Zhima-Mochi/minishop-saga/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	create *apporder.CreateOrderUseCase
	status *apporder.UpdateStatusUseCase
	query  *apporder.QueryService
}

func NewOrderHandler(create *apporder.CreateOrderUseCase, status *apporder.UpdateStatusUseCase, query *apporder.QueryService) *OrderHandler {
	return &OrderHandler{create: create, status: status, query: query}
}

func (h *OrderHandler) Routes(r chi.Router) {
	r.Post("/orders", h.handleCreate)
	r.Get("/orders", h.handleList)
	r.Get("/orders/status/{status}", h.handleListByStatus)
	r.Get("/orders/{id}", h.handleGet)
	r.Put("/orders/{id}/status", h.handleUpdateStatus)
}

type createOrderRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type orderResponse struct {
	ID        string          `json:"id"`
	Product   string          `json:"product"`
	Quantity  int             `json:"quantity"`
	Status    domorder.Status `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt *time.Time      `json:"updatedAt"`
}

type createOrderResponse struct {
	orderResponse
	Warning string `json:"warning,omitempty"`
}

type pageResponse struct {
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Total    int             `json:"total"`
	Data     []orderResponse `json:"data"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		Product:   o.Product,
		Quantity:  o.Quantity,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func (h *OrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.create.Execute(r.Context(), apporder.CreateOrderInput{
		Product:  req.Product,
		Quantity: req.Quantity,
	})
	if err != nil {
		// The order exists even though its event was lost; report it with a warning.
		if res != nil && apperr.ClassOf(err) == apperr.ClassDeliveryFailure {
			logctx.FromOr(r.Context(), nil).Warn("order_created_without_event",
				observability.F("order_id", res.Order.ID),
				observability.F("error", err.Error()),
			)
			writeJSON(w, http.StatusCreated, createOrderResponse{
				orderResponse: toOrderResponse(res.Order),
				Warning:       apperr.Kind(err),
			})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{orderResponse: toOrderResponse(res.Order)})
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	o, err := h.query.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) handleList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, nil)
}

func (h *OrderHandler) handleListByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := domorder.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidStatus,
			"status must be one of Pending, Completed, Cancelled", err))
		return
	}
	h.list(w, r, &status)
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request, status *domorder.Status) {
	q := r.URL.Query()
	res, err := h.query.List(r.Context(), apporder.ListInput{
		Status:   status,
		Page:     atoiOrZero(q.Get("page")),
		PageSize: atoiOrZero(q.Get("pageSize")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := make([]orderResponse, 0, len(res.Orders))
	for _, o := range res.Orders {
		data = append(data, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Page:     res.Page.Number,
		PageSize: res.Page.Size,
		Total:    res.Total,
		Data:     data,
	})
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := domorder.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.ClassValidation, apperr.ReasonInvalidStatus,
			"status must be one of Pending, Completed, Cancelled", err))
		return
	}

	res, err := h.status.Execute(r.Context(), apporder.UpdateStatusInput{
		OrderID: chi.URLParam(r, "id"),
		Status:  status,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(res.Order))
}

// atoiOrZero leaves bad values to the page normalisation.
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
