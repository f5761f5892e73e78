package cart

import (
	"github.com/fjod/go_storefront/storefront/domain"
	"github.com/shopspring/decimal"
)

const CurrencySymbol = "₹"

var taxRate = decimal.RequireFromString("0.08")

// Summary is the price breakdown shown on the cart and checkout pages.
// Shipping is always free.
type Summary struct {
	TotalItems int             `json:"totalItems"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
}

func FormatCurrency(amount decimal.Decimal) string {
	return CurrencySymbol + amount.StringFixed(2)
}

func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(taxRate).Round(2)
}

func Summarize(c domain.Cart) Summary {
	tax := Tax(c.TotalAmount)
	return Summary{
		TotalItems: c.TotalItems,
		Subtotal:   c.TotalAmount,
		Tax:        tax,
		Total:      c.TotalAmount.Add(tax),
	}
}
