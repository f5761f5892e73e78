package service

import (
	"context"
	"errors"

	d "github.com/fjod/go_storefront/storefront/domain"
	"github.com/fjod/go_storefront/storefront/internal/backend"
)

func (s *CheckoutService) createOrder(ctx context.Context, a *attempt, snapshot d.Cart, form d.CheckoutForm) (d.Order, error) {
	if err := s.transition(a, d.CheckoutStatusCreatingOrder); err != nil {
		return d.Order{}, err
	}

	req := d.CreateOrderRequest{
		Products:        make([]d.OrderItem, 0, len(snapshot.Items)),
		ShippingAddress: form.ShippingAddress(),
		PaymentMethod:   d.PaymentMethodOnline,
	}
	for _, it := range snapshot.Items {
		req.Products = append(req.Products, d.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	order, err := s.orders.CreateOrder(callCtx, req)
	if err != nil {
		return d.Order{}, &CheckoutError{
			Kind:    ErrOrderCreation,
			Message: backendMessage(err, "Checkout failed"),
			Err:     err,
		}
	}

	s.mu.Lock()
	a.OrderID = order.ID
	s.mu.Unlock()
	return order, nil
}

// backendMessage prefers the message the backend sent with its rejection.
func backendMessage(err error, fallback string) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
