package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fjod/go_storefront/storefront/domain"
	"github.com/fjod/go_storefront/storefront/internal/gateway"
	"github.com/fjod/go_storefront/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

type Checkout interface {
	Start(ctx context.Context, sessionID string, form domain.CheckoutForm) (domain.Attempt, error)
	Get(attemptID string) (domain.Attempt, error)
	Current(sessionID string) (domain.Attempt, bool)
}

// GatewayCallback receives the gateway widget's completion payload.
type GatewayCallback interface {
	Complete(ctx context.Context, resp domain.GatewayResponse) (domain.Attempt, error)
}

type CheckoutHandler struct {
	checkout Checkout
	callback GatewayCallback
}

func NewCheckoutHandler(checkout Checkout, callback GatewayCallback) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, callback: callback}
}

type CheckoutResponseDTO struct {
	domain.Attempt
	Fields []string `json:"fields,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	var form domain.CheckoutForm
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	a, err := h.checkout.Start(r.Context(), sessionFromContext(r.Context()), form)
	if err != nil {
		respondCheckoutError(w, a, err)
		return
	}
	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{Attempt: a})
}

// GET /api/v1/checkout/{id}
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	a, err := h.checkout.Get(chi.URLParam(r, "id"))
	if err != nil || a.SessionID != sessionFromContext(r.Context()) {
		respondError(w, http.StatusNotFound, "not_found", service.ErrAttemptNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponseDTO{Attempt: a})
}

// GET /api/v1/checkout
func (h *CheckoutHandler) CurrentCheckout(w http.ResponseWriter, r *http.Request) {
	a, ok := h.checkout.Current(sessionFromContext(r.Context()))
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", service.ErrAttemptNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponseDTO{Attempt: a})
}

// POST /api/v1/checkout/callback
func (h *CheckoutHandler) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	var resp domain.GatewayResponse
	if err := decodeJSON(r, &resp); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	a, err := h.callback.Complete(r.Context(), resp)
	switch {
	case errors.Is(err, gateway.ErrIncompleteResponse):
		respondError(w, http.StatusBadRequest, "incomplete_response", err.Error())
		return
	case errors.Is(err, gateway.ErrUnknownOrder):
		respondError(w, http.StatusNotFound, "unknown_order", err.Error())
		return
	case errors.Is(err, gateway.ErrAlreadyCompleted), errors.Is(err, service.ErrAttemptNotAwaiting):
		respondError(w, http.StatusConflict, "already_completed", err.Error())
		return
	}

	if err != nil {
		respondCheckoutError(w, a, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponseDTO{Attempt: a})
}

func respondCheckoutError(w http.ResponseWriter, a domain.Attempt, err error) {
	var cerr *service.CheckoutError
	if !errors.As(err, &cerr) {
		switch {
		case errors.Is(err, service.ErrCheckoutInProgress):
			respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
		case errors.Is(err, service.ErrAttemptNotFound):
			respondError(w, http.StatusNotFound, "not_found", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(cerr, service.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(cerr, service.ErrOrderCreation):
		status = http.StatusBadGateway
	case errors.Is(cerr, service.ErrPaymentGatewayUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(cerr, service.ErrVerification):
		status = http.StatusPaymentRequired
	case errors.Is(cerr, service.ErrGatewayTimeout):
		status = http.StatusGone
	}
	respondJSON(w, status, CheckoutResponseDTO{Attempt: a, Fields: cerr.Fields})
}
