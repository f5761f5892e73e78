package service

import (
	"context"
	"strings"

	d "github.com/fjod/go_storefront/storefront/domain"
)

func (s *CheckoutService) validate(_ context.Context, a *attempt, snapshot d.Cart, form d.CheckoutForm) error {
	if a.Status != d.CheckoutStatusValidating {
		return IllegalTransitionError
	}

	if missing := missingFields(form); len(missing) > 0 {
		return &CheckoutError{
			Kind:    ErrValidation,
			Message: "Please fill in all required fields",
			Fields:  missing,
		}
	}
	if form.PaymentMethod != "" && form.PaymentMethod != d.PaymentMethodOnline {
		return &CheckoutError{
			Kind:    ErrValidation,
			Message: "Only online payments are supported",
			Fields:  []string{"paymentMethod"},
		}
	}
	if snapshot.IsEmpty() {
		return &CheckoutError{Kind: ErrValidation, Message: "Your cart is empty", Err: ErrEmptyCart}
	}
	return nil
}

func missingFields(form d.CheckoutForm) []string {
	fields := []struct {
		name  string
		value string
	}{
		{"name", form.Name},
		{"email", form.Email},
		{"phone", form.Phone},
		{"address", form.Address},
		{"city", form.City},
		{"state", form.State},
		{"pincode", form.Pincode},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
