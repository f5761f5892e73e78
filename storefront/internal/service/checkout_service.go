package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_storefront/storefront/domain"
	"github.com/google/uuid"
)

// Start runs a checkout attempt for the session's cart up to the point where
// the gateway widget is open. The returned attempt is in AwaitingGatewayUI on
// success; on failure it is Failed and the error is a *CheckoutError.
// Start returns ErrCheckoutInProgress without creating an attempt when the
// session already has one talking to the backend.
func (s *CheckoutService) Start(ctx context.Context, sessionID string, form d.CheckoutForm) (d.Attempt, error) {
	a, err := s.begin(ctx, sessionID)
	if err != nil {
		return d.Attempt{}, err
	}
	log := s.log.With("attempt_id", a.ID, "session_id", sessionID)
	log.InfoContext(ctx, "checkout started")

	snapshot := s.carts.Get(ctx, sessionID).Snapshot()

	if err := s.validate(ctx, a, snapshot, form); err != nil {
		return s.fail(ctx, a, err)
	}

	order, err := s.createOrder(ctx, a, snapshot, form)
	if err != nil {
		return s.fail(ctx, a, err)
	}
	log.InfoContext(ctx, "order created", "order_id", order.ID)

	session, err := s.createPaymentSession(ctx, a, order, form)
	if err != nil {
		return s.fail(ctx, a, err)
	}

	if err := s.openGateway(ctx, a, order, session); err != nil {
		return s.fail(ctx, a, err)
	}
	log.InfoContext(ctx, "awaiting payment", "order_id", order.ID, "gateway_order_id", session.GatewayOrderID)
	return s.view(a), nil
}

// Get returns the current state of an attempt.
func (s *CheckoutService) Get(attemptID string) (d.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return d.Attempt{}, ErrAttemptNotFound
	}
	return a.Attempt, nil
}

// Current returns the latest attempt of a session.
func (s *CheckoutService) Current(sessionID string) (d.Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySession[sessionID]
	if !ok {
		return d.Attempt{}, false
	}
	a, ok := s.attempts[id]
	if !ok {
		return d.Attempt{}, false
	}
	return a.Attempt, true
}

// begin registers a new attempt for the session, superseding one that is
// parked on the gateway widget.
func (s *CheckoutService) begin(ctx context.Context, sessionID string) (*attempt, error) {
	s.mu.Lock()

	var superseded *attempt
	if prevID, ok := s.bySession[sessionID]; ok {
		if prev, ok := s.attempts[prevID]; ok {
			switch {
			case prev.Status.InFlight():
				s.mu.Unlock()
				return nil, ErrCheckoutInProgress
			case prev.Status == d.CheckoutStatusAwaitingGatewayUI:
				superseded = prev
				s.failLocked(prev, &CheckoutError{Kind: ErrAttemptAbandoned, Message: "Checkout was restarted"})
			}
		}
	}

	now := s.now()
	a := &attempt{Attempt: d.Attempt{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    d.CheckoutStatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.attempts[a.ID] = a
	s.bySession[sessionID] = a.ID
	// claim the session before releasing the lock
	_ = s.transitionLocked(a, d.CheckoutStatusValidating)
	s.mu.Unlock()

	if superseded != nil {
		s.ended(ctx, superseded)
	}
	return a, nil
}

func (s *CheckoutService) transition(a *attempt, to d.CheckoutStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(a, to)
}

func (s *CheckoutService) transitionLocked(a *attempt, to d.CheckoutStatus) error {
	if !d.CanTransitionTo(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", IllegalTransitionError, a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = s.now()
	return nil
}

// fail moves a to Failed and reports the outcome.
func (s *CheckoutService) fail(ctx context.Context, a *attempt, err error) (d.Attempt, error) {
	var cerr *CheckoutError
	if !errors.As(err, &cerr) {
		cerr = &CheckoutError{Kind: errors.New("checkout failed"), Message: "Checkout failed", Err: err}
	}

	s.mu.Lock()
	s.failLocked(a, cerr)
	s.mu.Unlock()

	s.log.WarnContext(ctx, "checkout failed", "attempt_id", a.ID, "session_id", a.SessionID, "order_id", a.OrderID, "kind", kindName(cerr.Kind), "error", cerr)
	s.ended(ctx, a)
	return s.view(a), cerr
}

func (s *CheckoutService) failLocked(a *attempt, cerr *CheckoutError) {
	if a.Status.IsTerminal() {
		return
	}
	a.Status = d.CheckoutStatusFailed
	a.ErrorKind = kindName(cerr.Kind)
	a.ErrorMessage = cerr.Message
	if a.ErrorMessage == "" {
		a.ErrorMessage = cerr.Kind.Error()
	}
	a.UpdatedAt = s.now()
	a.Deadline = time.Time{}
}

// ended discards the attempt's payment session and reports its outcome.
// a must be terminal.
func (s *CheckoutService) ended(ctx context.Context, a *attempt) {
	s.mu.Lock()
	var gatewayOrderID string
	if a.PaymentSession != nil {
		gatewayOrderID = a.PaymentSession.GatewayOrderID
	}
	a.PaymentSession = nil
	a.Widget = nil
	event := d.CheckoutEvent{
		EventID:    uuid.NewString(),
		AttemptID:  a.ID,
		SessionID:  a.SessionID,
		OrderID:    a.OrderID,
		Status:     a.Status,
		Reason:     a.ErrorKind,
		Amount:     a.amount,
		Currency:   a.currency,
		OccurredAt: a.UpdatedAt,
	}
	note := Notification{SessionID: a.SessionID, AttemptID: a.ID, Level: NotifyError, Message: a.ErrorMessage}
	if a.Status == d.CheckoutStatusSucceeded {
		note.Level = NotifySuccess
		note.Message = "Payment successful"
	}
	s.mu.Unlock()

	if gatewayOrderID != "" && s.widget != nil {
		s.widget.Close(gatewayOrderID)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.log.WarnContext(ctx, "failed to publish checkout event", "attempt_id", a.ID, "error", err)
		}
	}
	s.notifier.Notify(ctx, note)
}

func (s *CheckoutService) view(a *attempt) d.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return a.Attempt
}
