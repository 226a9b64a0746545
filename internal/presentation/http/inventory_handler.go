package httppresentation

import (
	"context"
	"net/http"
	"net/url"
	"time"

	appinv "github.com/Zhima-Mochi/minishop-saga/internal/application/inventory"
	dominv "github.com/Zhima-Mochi/minishop-saga/internal/domain/inventory"

	"github.com/go-chi/chi/v5"
)

type InventoryHandler struct {
	svc *appinv.Service
}

func NewInventoryHandler(svc *appinv.Service) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

func (h *InventoryHandler) Routes(r chi.Router) {
	r.Get("/inventory", h.handleList)
	r.Get("/inventory/{product}", h.handleGet)
	r.Post("/inventory/reserve", h.handleReserve)
	r.Post("/inventory/release", h.handleRelease)
}

type stockRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type stockResponse struct {
	Status    string `json:"status"`
	Product   string `json:"product"`
	Quantity  int    `json:"quantity"`
	Remaining int    `json:"remaining"`
}

type itemResponse struct {
	Product   string    `json:"product"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toItemResponse(i *dominv.Item) itemResponse {
	return itemResponse{Product: i.Product, Quantity: i.Quantity, UpdatedAt: i.UpdatedAt}
}

func (h *InventoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, i := range items {
		out = append(out, toItemResponse(i))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InventoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), productParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *InventoryHandler) handleReserve(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, "Reserved", h.svc.Reserve)
}

func (h *InventoryHandler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, "Released", h.svc.Release)
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request, status string,
	op func(context.Context, appinv.StockInput) (*dominv.Item, error),
) {
	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := op(r.Context(), appinv.StockInput{Product: req.Product, Quantity: req.Quantity})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{
		Status:    status,
		Product:   item.Product,
		Quantity:  req.Quantity,
		Remaining: item.Quantity,
	})
}

// productParam decodes the path value once. chi matches on RawPath when the
// request carries one (e.g. an escaped slash), and then its params stay escaped.
func productParam(r *http.Request) string {
	product := chi.URLParam(r, "product")
	if r.URL.RawPath == "" {
		return product
	}
	if p, err := url.PathUnescape(product); err == nil {
		return p
	}
	return product
}
