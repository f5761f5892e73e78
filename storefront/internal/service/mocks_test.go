package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	d "github.com/fjod/go_storefront/storefront/domain"
)

// mockOrders implements OrdersAPI for testing
type mockOrders struct {
	Order d.Order
	Err   error
	// Block, when set, holds CreateOrder until it is closed
	Block chan struct{}

	calls   atomic.Int32
	mu      sync.Mutex
	lastReq d.CreateOrderRequest
}

func (m *mockOrders) CreateOrder(_ context.Context, req d.CreateOrderRequest) (d.Order, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.Block != nil {
		<-m.Block
	}
	return m.Order, m.Err
}

// mockPayments implements PaymentsAPI for testing
type mockPayments struct {
	Session   d.PaymentSession
	CreateErr error
	Verify    d.VerifyResult
	VerifyErr error

	createCalls atomic.Int32
	verifyCalls atomic.Int32
	mu          sync.Mutex
	lastVerify  d.VerifyPaymentRequest
	lastCreate  d.CreatePaymentRequest
}

func (m *mockPayments) CreatePayment(_ context.Context, req d.CreatePaymentRequest) (d.PaymentSession, error) {
	m.createCalls.Add(1)
	m.mu.Lock()
	m.lastCreate = req
	m.mu.Unlock()
	return m.Session, m.CreateErr
}

func (m *mockPayments) VerifyPayment(_ context.Context, req d.VerifyPaymentRequest) (d.VerifyResult, error) {
	m.verifyCalls.Add(1)
	m.mu.Lock()
	m.lastVerify = req
	m.mu.Unlock()
	return m.Verify, m.VerifyErr
}

type mockScript struct {
	Err   error
	calls atomic.Int32
}

func (m *mockScript) Load(context.Context) error {
	m.calls.Add(1)
	return m.Err
}

// mockWidget records opened and closed widgets
type mockWidget struct {
	OpenErr error

	mu     sync.Mutex
	opened []d.WidgetOptions
	closed []string
}

func (m *mockWidget) Open(_ context.Context, opts d.WidgetOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.opened = append(m.opened, opts)
	return nil
}

func (m *mockWidget) Close(gatewayOrderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, gatewayOrderID)
}

func (m *mockWidget) last() d.WidgetOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened[len(m.opened)-1]
}

func (m *mockWidget) closedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closed...)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []d.CheckoutEvent
}

func (m *mockPublisher) Publish(_ context.Context, e d.CheckoutEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockPublisher) all() []d.CheckoutEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]d.CheckoutEvent(nil), m.events...)
}

type mockNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (m *mockNotifier) Notify(_ context.Context, n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, n)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(dur time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(dur)
	c.mu.Unlock()
}
