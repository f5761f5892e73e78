package http

import (
	"context"
	"net/http"
)

type Script interface {
	Load(ctx context.Context) error
	Script() ([]byte, bool)
}

type GatewayHandler struct {
	script Script
}

func NewGatewayHandler(script Script) *GatewayHandler {
	return &GatewayHandler{script: script}
}

// GET /gateway/checkout.js
func (h *GatewayHandler) CheckoutScript(w http.ResponseWriter, r *http.Request) {
	body, ok := h.script.Script()
	if !ok {
		if err := h.script.Load(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "gateway_unavailable", "payment gateway script unavailable")
			return
		}
		body, _ = h.script.Script()
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
