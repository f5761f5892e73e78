package service

import (
	"context"
	"time"

	d "github.com/fjod/go_storefront/storefront/domain"
)

// CompletePayment verifies the gateway's completion payload for an attempt
// waiting on the widget. On success the session's cart is cleared. Either way
// the attempt ends with a RedirectURL for the result page that carries the
// verified marker, so the page never verifies a second time.
// Calls for attempts that are not awaiting payment make no backend request.
func (s *CheckoutService) CompletePayment(ctx context.Context, attemptID string, resp d.GatewayResponse) (d.Attempt, error) {
	s.mu.Lock()
	a, ok := s.attempts[attemptID]
	if !ok {
		s.mu.Unlock()
		return d.Attempt{}, ErrAttemptNotFound
	}
	if a.Status != d.CheckoutStatusAwaitingGatewayUI {
		view := a.Attempt
		s.mu.Unlock()
		return view, ErrAttemptNotAwaiting
	}
	if s.now().After(a.Deadline) {
		cerr := &CheckoutError{Kind: ErrGatewayTimeout, Message: "Payment window expired, please try again"}
		s.failLocked(a, cerr)
		s.mu.Unlock()
		s.ended(ctx, a)
		return s.view(a), cerr
	}
	_ = s.transitionLocked(a, d.CheckoutStatusVerifyingPayment)
	orderID, sessionID := a.OrderID, a.SessionID
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	result, err := s.payments.VerifyPayment(callCtx, d.VerifyPaymentRequest{
		OrderID:          orderID,
		GatewayPaymentID: resp.PaymentID,
		GatewayOrderID:   resp.OrderID,
		GatewaySignature: resp.Signature,
	})
	if err != nil || !result.Success {
		cerr := &CheckoutError{Kind: ErrVerification, Message: "Payment verification failed", Err: err}
		if err == nil && result.Message != "" {
			cerr.Message = result.Message
		}
		s.mu.Lock()
		a.RedirectURL = ResultURL(orderID, false)
		s.mu.Unlock()
		return s.fail(ctx, a, cerr)
	}

	s.carts.Get(ctx, sessionID).Clear(ctx)

	s.mu.Lock()
	if err := s.transitionLocked(a, d.CheckoutStatusSucceeded); err != nil {
		s.mu.Unlock()
		return s.fail(ctx, a, err)
	}
	a.RedirectURL = ResultURL(orderID, true)
	a.Deadline = time.Time{}
	s.mu.Unlock()

	s.log.InfoContext(ctx, "payment verified", "attempt_id", a.ID, "session_id", sessionID, "order_id", orderID)
	s.ended(ctx, a)
	return s.view(a), nil
}
