package http

import (
	"context"
	"net/http"

	"github.com/fjod/go_storefront/storefront/internal/service"
)

type ResultResolver interface {
	Resolve(ctx context.Context, sessionID string, p service.ResultParams) service.PaymentResult
}

type PaymentHandler struct {
	resolver ResultResolver
}

func NewPaymentHandler(resolver ResultResolver) *PaymentHandler {
	return &PaymentHandler{resolver: resolver}
}

// GET /payment/success and GET /api/v1/payment/result
func (h *PaymentHandler) Result(w http.ResponseWriter, r *http.Request) {
	res := h.resolver.Resolve(r.Context(), sessionFromContext(r.Context()), service.ParseResultParams(r.URL.Query()))
	respondJSON(w, http.StatusOK, res)
}
