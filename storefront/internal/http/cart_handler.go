package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fjod/go_storefront/storefront/domain"
	"github.com/fjod/go_storefront/storefront/internal/cart"
	"github.com/go-chi/chi/v5"
)

// Carts resolves a shopper session to its cart store.
type Carts interface {
	Get(ctx context.Context, sessionID string) *cart.Store
}

type CartHandler struct {
	carts Carts
}

func NewCartHandler(carts Carts) *CartHandler {
	return &CartHandler{carts: carts}
}

// AddItemRequestDTO adds one unit when quantity is omitted.
type AddItemRequestDTO struct {
	Product  domain.Product `json:"product"`
	Size     string         `json:"size"`
	Quantity *int           `json:"quantity,omitempty"`
}

func (r AddItemRequestDTO) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SummaryDTO struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
}

type CartResponseDTO struct {
	domain.Cart
	Summary SummaryDTO `json:"summary"`
}

func cartView(c domain.Cart) CartResponseDTO {
	sum := cart.Summarize(c)
	return CartResponseDTO{
		Cart: c,
		Summary: SummaryDTO{
			Subtotal: cart.FormatCurrency(sum.Subtotal),
			Tax:      cart.FormatCurrency(sum.Tax),
			Shipping: "Free",
			Total:    cart.FormatCurrency(sum.Total),
		},
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	st := h.carts.Get(r.Context(), sessionFromContext(r.Context()))
	respondJSON(w, http.StatusOK, cartView(st.Snapshot()))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	st := h.carts.Get(r.Context(), sessionFromContext(r.Context()))
	c, err := st.AddItem(r.Context(), req.Product, req.Size, req.quantity())
	if err != nil {
		handleCartError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartView(c))
}

// PUT /api/v1/cart/items/{product_id}/{size}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, size, ok := lineFromPath(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	st := h.carts.Get(r.Context(), sessionFromContext(r.Context()))
	respondJSON(w, http.StatusOK, cartView(st.UpdateQuantity(r.Context(), productID, size, req.Quantity)))
}

// DELETE /api/v1/cart/items/{product_id}/{size}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, size, ok := lineFromPath(w, r)
	if !ok {
		return
	}
	st := h.carts.Get(r.Context(), sessionFromContext(r.Context()))
	respondJSON(w, http.StatusOK, cartView(st.RemoveItem(r.Context(), productID, size)))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	st := h.carts.Get(r.Context(), sessionFromContext(r.Context()))
	respondJSON(w, http.StatusOK, cartView(st.Clear(r.Context())))
}

func lineFromPath(w http.ResponseWriter, r *http.Request) (productID, size string, ok bool) {
	productID = strings.TrimSpace(chi.URLParam(r, "product_id"))
	size = strings.TrimSpace(chi.URLParam(r, "size"))
	if productID == "" || size == "" {
		respondError(w, http.StatusBadRequest, "invalid_line", "product_id and size are required")
		return "", "", false
	}
	return productID, size, true
}

func handleCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrMissingProduct):
		respondError(w, http.StatusBadRequest, "invalid_product", err.Error())
	case errors.Is(err, cart.ErrInvalidSize):
		respondError(w, http.StatusBadRequest, "invalid_size", err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrInvalidPrice):
		respondError(w, http.StatusBadRequest, "invalid_price", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
