package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fjod/go_storefront/storefront/domain"
	"github.com/fjod/go_storefront/storefront/internal/backend"
)

type OrdersLister interface {
	UserOrders(ctx context.Context) ([]domain.Order, error)
}

type OrdersHandler struct {
	orders OrdersLister
}

func NewOrdersHandler(orders OrdersLister) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

type OrdersResponseDTO struct {
	Orders []domain.Order `json:"orders"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.UserOrders(r.Context())
	if err != nil {
		handleBackendError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, OrdersResponseDTO{Orders: orders})
}

func handleBackendError(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		respondError(w, status, "backend_error", apiErr.Message)
	case errors.Is(err, backend.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "backend timed out")
	default:
		respondError(w, http.StatusBadGateway, "backend_error", "backend request failed")
	}
}
