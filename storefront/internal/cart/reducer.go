package cart

import (
	"github.com/shopspring/decimal"

	"github.com/fjod/go_storefront/storefront/domain"
)

// Action is one cart mutation. Only the fields relevant to Type are read.
type Action struct {
	Type      domain.CartAction
	Item      domain.LineItem
	ProductID string
	Size      string
	Quantity  int
}

func AddAction(p domain.Product, size string, quantity int) Action {
	return Action{
		Type: domain.ActionAddToCart,
		Item: domain.LineItem{
			ProductID: p.ID,
			Size:      size,
			Name:      p.Name,
			Price:     p.Price,
			ImageURL:  p.ImageURL,
			Quantity:  quantity,
		},
	}
}

func RemoveAction(productID, size string) Action {
	return Action{Type: domain.ActionRemoveFromCart, ProductID: productID, Size: size}
}

func UpdateQuantityAction(productID, size string, quantity int) Action {
	return Action{Type: domain.ActionUpdateQuantity, ProductID: productID, Size: size, Quantity: quantity}
}

func ClearAction() Action {
	return Action{Type: domain.ActionClearCart}
}

// Reduce returns the cart that results from applying a to state. It never
// modifies state and always recomputes totals from the resulting items.
// Unknown action types leave the cart unchanged.
func Reduce(state domain.Cart, a Action) domain.Cart {
	var items []domain.LineItem

	switch a.Type {
	case domain.ActionAddToCart:
		items = addLine(state.Items, a.Item)
	case domain.ActionRemoveFromCart:
		items = removeLine(state.Items, a.ProductID, a.Size)
	case domain.ActionUpdateQuantity:
		if a.Quantity <= 0 {
			items = removeLine(state.Items, a.ProductID, a.Size)
			break
		}
		items = make([]domain.LineItem, 0, len(state.Items))
		for _, it := range state.Items {
			if it.Matches(a.ProductID, a.Size) {
				it.Quantity = a.Quantity
			}
			items = append(items, it)
		}
	case domain.ActionClearCart:
		items = []domain.LineItem{}
	default:
		return state.Clone()
	}

	next := domain.Cart{Items: positive(items), LastAction: a.Type}
	computeTotals(&next)
	return next
}

func addLine(items []domain.LineItem, add domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items)+1)
	merged := false
	for _, it := range items {
		if it.Matches(add.ProductID, add.Size) {
			it.Quantity += add.Quantity
			merged = true
		}
		out = append(out, it)
	}
	if !merged {
		out = append(out, add)
	}
	return out
}

func removeLine(items []domain.LineItem, productID, size string) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		if !it.Matches(productID, size) {
			out = append(out, it)
		}
	}
	return out
}

// positive drops lines whose quantity fell to zero or below.
func positive(items []domain.LineItem) []domain.LineItem {
	out := items[:0:0]
	for _, it := range items {
		if it.Quantity > 0 {
			out = append(out, it)
		}
	}
	if out == nil {
		out = []domain.LineItem{}
	}
	return out
}

func computeTotals(c *domain.Cart) {
	c.TotalItems = 0
	c.TotalAmount = decimal.Zero
	for _, it := range c.Items {
		c.TotalItems += it.Quantity
		c.TotalAmount = c.TotalAmount.Add(it.Subtotal())
	}
}
