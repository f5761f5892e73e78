package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_storefront/storefront/domain"
)

var (
	ErrInvalidOptions     = errors.New("widget options incomplete")
	ErrUnknownOrder       = errors.New("no open checkout for gateway order")
	ErrAlreadyCompleted   = errors.New("checkout already completed")
	ErrIncompleteResponse = errors.New("gateway response missing payment id, order id or signature")
)

type widget struct {
	opts     domain.WidgetOptions
	openedAt time.Time
	done     bool
}

// HostedCheckout stands in for the gateway's modal widget. Open registers the
// widget under its gateway order id; the gateway's completion payload reaches
// the registered handler through Complete, at most once per widget.
type HostedCheckout struct {
	log *slog.Logger

	mu      sync.Mutex
	widgets map[string]*widget
}

func NewHostedCheckout(log *slog.Logger) *HostedCheckout {
	if log == nil {
		log = slog.Default()
	}
	return &HostedCheckout{log: log, widgets: make(map[string]*widget)}
}

func (h *HostedCheckout) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.widgets)
}

func (h *HostedCheckout) Open(ctx context.Context, opts domain.WidgetOptions) error {
	if opts.Key == "" || opts.OrderID == "" || opts.Handler == nil {
		return ErrInvalidOptions
	}
	h.mu.Lock()
	h.widgets[opts.OrderID] = &widget{opts: opts, openedAt: time.Now()}
	h.mu.Unlock()

	h.log.InfoContext(ctx, "checkout widget opened", "gateway_order_id", opts.OrderID, "amount", opts.Amount, "currency", opts.Currency)
	return nil
}

// Lookup returns the options of an open widget.
func (h *HostedCheckout) Lookup(gatewayOrderID string) (domain.WidgetOptions, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.widgets[gatewayOrderID]
	if !ok || w.done {
		return domain.WidgetOptions{}, false
	}
	return w.opts, true
}

// Complete delivers the gateway's completion payload to the widget's handler
// and returns the attempt the handler settled.
func (h *HostedCheckout) Complete(ctx context.Context, resp domain.GatewayResponse) (domain.Attempt, error) {
	if !resp.Complete() {
		return domain.Attempt{}, ErrIncompleteResponse
	}

	h.mu.Lock()
	w, ok := h.widgets[resp.OrderID]
	if !ok {
		h.mu.Unlock()
		return domain.Attempt{}, ErrUnknownOrder
	}
	if w.done {
		h.mu.Unlock()
		return domain.Attempt{}, ErrAlreadyCompleted
	}
	w.done = true
	handler := w.opts.Handler
	h.mu.Unlock()

	return handler(ctx, resp)
}

// Close discards a widget once its attempt has ended.
func (h *HostedCheckout) Close(gatewayOrderID string) {
	h.mu.Lock()
	delete(h.widgets, gatewayOrderID)
	h.mu.Unlock()
}

