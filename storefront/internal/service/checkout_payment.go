package service

import (
	"context"
	"fmt"

	d "github.com/fjod/go_storefront/storefront/domain"
)

const gatewayNotConfigured = "Payment gateway did not return an order. Ensure the payment gateway is configured on the server."

func (s *CheckoutService) createPaymentSession(ctx context.Context, a *attempt, order d.Order, form d.CheckoutForm) (d.PaymentSession, error) {
	if err := s.transition(a, d.CheckoutStatusCreatingPaymentSession); err != nil {
		return d.PaymentSession{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	session, err := s.payments.CreatePayment(callCtx, d.CreatePaymentRequest{
		OrderID:         order.ID,
		CustomerDetails: form.Customer(),
	})
	if err != nil {
		return d.PaymentSession{}, &CheckoutError{
			Kind:    ErrPaymentGatewayUnavailable,
			Message: backendMessage(err, gatewayNotConfigured),
			Err:     err,
		}
	}
	// an empty success body means the backend has no gateway configured
	if session.GatewayOrderID == "" {
		return d.PaymentSession{}, &CheckoutError{Kind: ErrPaymentGatewayUnavailable, Message: gatewayNotConfigured}
	}
	if session.Currency == "" {
		session.Currency = s.opts.Currency
	}

	s.mu.Lock()
	a.PaymentSession = &session
	a.amount = session.Amount
	a.currency = session.Currency
	s.mu.Unlock()
	return session, nil
}

func (s *CheckoutService) openGateway(ctx context.Context, a *attempt, order d.Order, session d.PaymentSession) error {
	loadCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	if err := s.script.Load(loadCtx); err != nil {
		return &CheckoutError{Kind: ErrPaymentGatewayUnavailable, Message: "Payment gateway could not be loaded", Err: err}
	}

	attemptID := a.ID
	opts := d.WidgetOptions{
		Key:         session.KeyID,
		Amount:      session.Amount,
		Currency:    session.Currency,
		Name:        s.opts.StoreName,
		Description: fmt.Sprintf("Order %s", order.ID),
		OrderID:     session.GatewayOrderID,
		Prefill: d.WidgetPrefill{
			Name:    session.Customer.Name,
			Email:   session.Customer.Email,
			Contact: session.Customer.Contact,
		},
		Theme: d.WidgetTheme{Color: s.opts.ThemeColor},
		Handler: func(ctx context.Context, resp d.GatewayResponse) (d.Attempt, error) {
			return s.CompletePayment(ctx, attemptID, resp)
		},
	}

	s.mu.Lock()
	if err := s.transitionLocked(a, d.CheckoutStatusAwaitingGatewayUI); err != nil {
		s.mu.Unlock()
		return err
	}
	a.Widget = &opts
	a.Deadline = a.UpdatedAt.Add(s.opts.GatewayTimeout)
	s.mu.Unlock()

	if err := s.widget.Open(ctx, opts); err != nil {
		return &CheckoutError{Kind: ErrPaymentGatewayUnavailable, Message: "Payment gateway could not be opened", Err: err}
	}
	return nil
}
