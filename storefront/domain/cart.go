package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrSnapshotNotFound is returned by snapshot stores when no cart is saved under a key.
var ErrSnapshotNotFound = errors.New("cart snapshot not found")

type CartAction string

const (
	ActionAddToCart      CartAction = "ADD_TO_CART"
	ActionRemoveFromCart CartAction = "REMOVE_FROM_CART"
	ActionUpdateQuantity CartAction = "UPDATE_QUANTITY"
	ActionClearCart      CartAction = "CLEAR_CART"
)

// Product is the catalog view handed to the cart when a shopper adds an item.
type Product struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageURL"`
}

// LineItem is one (product, size) entry. Name, Price and ImageURL are captured
// when the item is added and do not follow later catalog changes.
type LineItem struct {
	ProductID string          `json:"productId"`
	Size      string          `json:"size"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageURL"`
	Quantity  int             `json:"quantity"`
}

func (i LineItem) Matches(productID, size string) bool {
	return i.ProductID == productID && i.Size == size
}

func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the persisted cart document. TotalItems and TotalAmount are derived
// from Items and are never set independently.
type Cart struct {
	Items       []LineItem      `json:"items"`
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	LastAction  CartAction      `json:"lastAction,omitempty"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]LineItem, len(c.Items))
	copy(out.Items, c.Items)
	return out
}
