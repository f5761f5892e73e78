package service

import (
	"context"
	"time"

	d "github.com/fjod/go_storefront/storefront/domain"
)

// Run expires attempts whose payment window has passed and forgets finished
// attempts after the retention period. It returns when ctx is done.
func (s *CheckoutService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			expired, pruned := s.Sweep(ctx)
			if expired > 0 || pruned > 0 {
				s.log.DebugContext(ctx, "checkout sweep", "expired", expired, "pruned", pruned)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *CheckoutService) Sweep(ctx context.Context) (expired, pruned int) {
	now := s.now()

	var timedOut []*attempt
	s.mu.Lock()
	for id, a := range s.attempts {
		switch {
		case a.Status == d.CheckoutStatusAwaitingGatewayUI && now.After(a.Deadline):
			s.failLocked(a, &CheckoutError{Kind: ErrGatewayTimeout, Message: "Payment window expired, please try again"})
			timedOut = append(timedOut, a)
		case a.Status.IsTerminal() && now.Sub(a.UpdatedAt) > s.opts.Retain:
			delete(s.attempts, id)
			if s.bySession[a.SessionID] == id {
				delete(s.bySession, a.SessionID)
			}
			pruned++
		}
	}
	s.mu.Unlock()

	for _, a := range timedOut {
		s.log.InfoContext(ctx, "checkout expired waiting for payment", "attempt_id", a.ID, "order_id", a.OrderID)
		s.ended(ctx, a)
	}
	return len(timedOut), pruned
}

func (s *CheckoutService) sweepInterval() time.Duration {
	interval := s.opts.GatewayTimeout / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
