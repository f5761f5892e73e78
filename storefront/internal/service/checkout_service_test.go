package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_storefront/pkg/logger"
	d "github.com/fjod/go_storefront/storefront/domain"
	"github.com/fjod/go_storefront/storefront/internal/backend"
	"github.com/fjod/go_storefront/storefront/internal/cache"
	"github.com/fjod/go_storefront/storefront/internal/cart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionID = "s1"

type testEnv struct {
	svc       *CheckoutService
	carts     *cart.Registry
	snapshots *cache.MemoryStore
	orders    *mockOrders
	payments  *mockPayments
	script    *mockScript
	widget    *mockWidget
	publisher *mockPublisher
	notifier  *mockNotifier
	clock     *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	snapshots := cache.NewMemoryStore()
	env := &testEnv{
		carts:     cart.NewRegistry(snapshots, logger.Discard()),
		snapshots: snapshots,
		orders:    &mockOrders{Order: d.Order{ID: "o123", PaymentStatus: d.PaymentStatusPending}},
		payments: &mockPayments{
			Session: d.PaymentSession{
				GatewayOrderID: "order_G1",
				KeyID:          "rzp_test_key",
				Amount:         162000,
				Currency:       "INR",
				Customer:       d.GatewayCustomer{Name: "Asha", Email: "asha@example.com", Contact: "9999999999"},
			},
			Verify: d.VerifyResult{Success: true},
		},
		script:    &mockScript{},
		widget:    &mockWidget{},
		publisher: &mockPublisher{},
		notifier:  &mockNotifier{},
		clock:     &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	env.svc = NewCheckoutService(Deps{
		Carts:     env.carts,
		Orders:    env.orders,
		Payments:  env.payments,
		Script:    env.script,
		Widget:    env.widget,
		Publisher: env.publisher,
		Notifier:  env.notifier,
		Log:       logger.Discard(),
	}, Options{GatewayTimeout: 10 * time.Minute, Retain: time.Hour})
	env.svc.now = env.clock.Now
	return env
}

func (e *testEnv) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	st := e.carts.Get(ctx, sessionID)
	_, err := st.AddItem(ctx, d.Product{ID: "p1", Name: "Kurta", Price: decimal.NewFromInt(500)}, "M", 2)
	require.NoError(t, err)
	_, err = st.AddItem(ctx, d.Product{ID: "p1", Name: "Kurta", Price: decimal.NewFromInt(500)}, "L", 1)
	require.NoError(t, err)
}

func (e *testEnv) cartItems() int {
	return e.carts.Get(context.Background(), sessionID).Snapshot().TotalItems
}

func validForm() d.CheckoutForm {
	return d.CheckoutForm{
		Name:    "Asha",
		Email:   "asha@example.com",
		Phone:   "9999999999",
		Address: "12 MG Road",
		City:    "Bengaluru",
		State:   "KA",
		Pincode: "560001",
	}
}

func gatewayResponse() d.GatewayResponse {
	return d.GatewayResponse{PaymentID: "pay_1", OrderID: "order_G1", Signature: "sig"}
}

func TestStart_OpensWidget(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)

	a, err := env.svc.Start(context.Background(), sessionID, validForm())
	require.NoError(t, err)

	assert.Equal(t, d.CheckoutStatusAwaitingGatewayUI, a.Status)
	assert.Equal(t, "o123", a.OrderID)
	require.NotNil(t, a.PaymentSession)
	assert.Equal(t, "order_G1", a.PaymentSession.GatewayOrderID)
	assert.Equal(t, env.clock.Now().Add(10*time.Minute), a.Deadline)

	req := env.orders.lastReq
	require.Len(t, req.Products, 2)
	assert.Equal(t, 2, req.Products[0].Quantity)
	assert.True(t, decimal.NewFromInt(500).Equal(req.Products[0].Price))
	assert.Equal(t, "560001", req.ShippingAddress.Pincode)
	assert.Equal(t, d.PaymentMethodOnline, req.PaymentMethod)

	assert.Equal(t, "o123", env.payments.lastCreate.OrderID)
	assert.Equal(t, "asha@example.com", env.payments.lastCreate.CustomerDetails.Email)

	w := env.widget.last()
	assert.Equal(t, "rzp_test_key", w.Key)
	assert.Equal(t, int64(162000), w.Amount)
	assert.Equal(t, "INR", w.Currency)
	assert.Equal(t, "ALGUD", w.Name)
	assert.Equal(t, "Order o123", w.Description)
	assert.Equal(t, "order_G1", w.OrderID)
	assert.Equal(t, "9999999999", w.Prefill.Contact)
	assert.Equal(t, "#000000", w.Theme.Color)
	assert.NotNil(t, w.Handler)
}

func TestCheckout_SuccessClearsCart(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	ctx := context.Background()

	_, err := env.svc.Start(ctx, sessionID, validForm())
	require.NoError(t, err)

	// the gateway calls the widget handler
	settled, err := env.widget.last().Handler(ctx, gatewayResponse())
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusSucceeded, settled.Status)

	a, ok := env.svc.Current(sessionID)
	require.True(t, ok)
	assert.Equal(t, d.CheckoutStatusSucceeded, a.Status)
	assert.Equal(t, "/payment/success?order_id=o123&status=success&verified=true", a.RedirectURL)
	assert.Nil(t, a.PaymentSession)
	assert.Nil(t, a.Widget)
	assert.Zero(t, env.cartItems())

	assert.Equal(t, d.VerifyPaymentRequest{
		OrderID: "o123", GatewayPaymentID: "pay_1", GatewayOrderID: "order_G1", GatewaySignature: "sig",
	}, env.payments.lastVerify)

	stored, err := env.snapshots.Load(ctx, cart.SessionKey(sessionID))
	require.NoError(t, err)
	assert.Contains(t, string(stored), `"items":[]`)

	events := env.publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, d.CheckoutStatusSucceeded, events[0].Status)
	assert.Equal(t, "CheckoutSucceeded", events[0].Type())
	assert.Equal(t, int64(162000), events[0].Amount)
	assert.Equal(t, []string{"order_G1"}, env.widget.closedIDs())
}

func TestCheckout_VerificationIsNotRepeated(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	ctx := context.Background()

	a, err := env.svc.Start(ctx, sessionID, validForm())
	require.NoError(t, err)
	_, err = env.svc.CompletePayment(ctx, a.ID, gatewayResponse())
	require.NoError(t, err)

	again, err := env.svc.CompletePayment(ctx, a.ID, gatewayResponse())
	assert.ErrorIs(t, err, ErrAttemptNotAwaiting)
	assert.Equal(t, d.CheckoutStatusSucceeded, again.Status)
	assert.Equal(t, int32(1), env.payments.verifyCalls.Load())
}

func TestStart_Validation(t *testing.T) {
	tests := []struct {
		name      string
		fill      bool
		form      func() d.CheckoutForm
		wantField string
		wantEmpty bool
	}{
		{"missing email", true, func() d.CheckoutForm { f := validForm(); f.Email = ""; return f }, "email", false},
		{"blank pincode", true, func() d.CheckoutForm { f := validForm(); f.Pincode = "  "; return f }, "pincode", false},
		{"unsupported method", true, func() d.CheckoutForm { f := validForm(); f.PaymentMethod = "cod"; return f }, "paymentMethod", false},
		{"empty cart", false, validForm, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.fill {
				env.fillCart(t)
			}

			a, err := env.svc.Start(context.Background(), sessionID, tt.form())
			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, d.CheckoutStatusFailed, a.Status)
			assert.Equal(t, "validation", a.ErrorKind)

			var cerr *CheckoutError
			require.ErrorAs(t, err, &cerr)
			if tt.wantField != "" {
				assert.Contains(t, cerr.Fields, tt.wantField)
			}
			assert.Equal(t, tt.wantEmpty, errors.Is(err, ErrEmptyCart))
			assert.Zero(t, env.orders.calls.Load(), "backend must not be contacted")
		})
	}
}

func TestStart_OrderCreationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	env.orders.Err = &backend.APIError{StatusCode: 200, Message: "Product p1 is out of stock"}

	a, err := env.svc.Start(context.Background(), sessionID, validForm())
	require.ErrorIs(t, err, ErrOrderCreation)
	assert.Equal(t, d.CheckoutStatusFailed, a.Status)
	assert.Equal(t, "Product p1 is out of stock", a.ErrorMessage)
	assert.Zero(t, env.payments.createCalls.Load())
	assert.Equal(t, 3, env.cartItems())

	env.notifier.mu.Lock()
	defer env.notifier.mu.Unlock()
	require.Len(t, env.notifier.notes, 1)
	assert.Equal(t, NotifyError, env.notifier.notes[0].Level)
	assert.Equal(t, "Product p1 is out of stock", env.notifier.notes[0].Message)
}

func TestStart_MissingGatewayOrderID(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	env.payments.Session = d.PaymentSession{}

	a, err := env.svc.Start(context.Background(), sessionID, validForm())
	require.ErrorIs(t, err, ErrPaymentGatewayUnavailable)
	assert.Equal(t, d.CheckoutStatusFailed, a.Status)
	assert.Equal(t, "o123", a.OrderID)
	assert.Equal(t, 3, env.cartItems())
	assert.Zero(t, env.script.calls.Load())
	assert.Empty(t, env.widget.opened)
}

func TestStart_PaymentSessionError(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	env.payments.CreateErr = errors.New("connection refused")

	_, err := env.svc.Start(context.Background(), sessionID, validForm())
	require.ErrorIs(t, err, ErrPaymentGatewayUnavailable)
	assert.ErrorContains(t, err, "connection refused")
}

func TestStart_ScriptLoadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	env.script.Err = errors.New("cdn down")

	a, err := env.svc.Start(context.Background(), sessionID, validForm())
	require.ErrorIs(t, err, ErrPaymentGatewayUnavailable)
	assert.Nil(t, a.PaymentSession)
	assert.Empty(t, env.widget.opened)
}

func TestCheckout_VerificationRejected(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	env.payments.Verify = d.VerifyResult{Success: false, Message: "signature mismatch"}
	ctx := context.Background()

	a, err := env.svc.Start(ctx, sessionID, validForm())
	require.NoError(t, err)

	done, err := env.svc.CompletePayment(ctx, a.ID, gatewayResponse())
	require.ErrorIs(t, err, ErrVerification)
	assert.Equal(t, d.CheckoutStatusFailed, done.Status)
	assert.Equal(t, "signature mismatch", done.ErrorMessage)
	assert.Equal(t, "/payment/success?order_id=o123&status=failed&verified=false", done.RedirectURL)
	assert.Nil(t, done.PaymentSession)
	assert.Equal(t, 3, env.cartItems(), "cart must be kept")
}

func TestCheckout_VerificationNetworkError(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	env.payments.VerifyErr = errors.New("timeout")
	ctx := context.Background()

	a, err := env.svc.Start(ctx, sessionID, validForm())
	require.NoError(t, err)

	done, err := env.svc.CompletePayment(ctx, a.ID, gatewayResponse())
	require.ErrorIs(t, err, ErrVerification)
	assert.Equal(t, "Payment verification failed", done.ErrorMessage)
	assert.Contains(t, done.RedirectURL, "verified=false")
	assert.Equal(t, 3, env.cartItems())
}

func TestStart_RejectsConcurrentAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	env.orders.Block = make(chan struct{})
	ctx := context.Background()

	type result struct {
		a   d.Attempt
		err error
	}
	first := make(chan result, 1)
	go func() {
		a, err := env.svc.Start(ctx, sessionID, validForm())
		first <- result{a, err}
	}()

	require.Eventually(t, func() bool { return env.orders.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := env.svc.Start(ctx, sessionID, validForm())
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	close(env.orders.Block)
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, d.CheckoutStatusAwaitingGatewayUI, r.a.Status)
	assert.Equal(t, int32(1), env.orders.calls.Load())
}

func TestStart_SupersedesAwaitingAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	ctx := context.Background()

	first, err := env.svc.Start(ctx, sessionID, validForm())
	require.NoError(t, err)
	second, err := env.svc.Start(ctx, sessionID, validForm())
	require.NoError(t, err)

	old, err := env.svc.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusFailed, old.Status)
	assert.Equal(t, "abandoned", old.ErrorKind)
	assert.Equal(t, []string{"order_G1"}, env.widget.closedIDs())

	_, err = env.svc.CompletePayment(ctx, first.ID, gatewayResponse())
	assert.ErrorIs(t, err, ErrAttemptNotAwaiting)

	cur, ok := env.svc.Current(sessionID)
	require.True(t, ok)
	assert.Equal(t, second.ID, cur.ID)
}

func TestCheckout_GatewayTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	ctx := context.Background()

	a, err := env.svc.Start(ctx, sessionID, validForm())
	require.NoError(t, err)

	env.clock.Advance(5 * time.Minute)
	expired, _ := env.svc.Sweep(ctx)
	assert.Zero(t, expired)

	env.clock.Advance(6 * time.Minute)
	expired, _ = env.svc.Sweep(ctx)
	assert.Equal(t, 1, expired)

	got, err := env.svc.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, d.CheckoutStatusFailed, got.Status)
	assert.Equal(t, "gateway_timeout", got.ErrorKind)

	_, err = env.svc.CompletePayment(ctx, a.ID, gatewayResponse())
	assert.ErrorIs(t, err, ErrAttemptNotAwaiting)
	assert.Zero(t, env.payments.verifyCalls.Load())
	assert.Equal(t, 3, env.cartItems())
}

func TestCheckout_LateCallbackExpiresAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.fillCart(t)
	ctx := context.Background()

	a, err := env.svc.Start(ctx, sessionID, validForm())
	require.NoError(t, err)
	env.clock.Advance(11 * time.Minute)

	got, err := env.svc.CompletePayment(ctx, a.ID, gatewayResponse())
	require.ErrorIs(t, err, ErrGatewayTimeout)
	assert.Equal(t, d.CheckoutStatusFailed, got.Status)
	assert.Zero(t, env.payments.verifyCalls.Load())
}

func TestSweep_PrunesFinishedAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.svc.Start(ctx, sessionID, validForm())
	require.ErrorIs(t, err, ErrValidation)

	env.clock.Advance(2 * time.Hour)
	_, pruned := env.svc.Sweep(ctx)
	assert.Equal(t, 1, pruned)

	_, err = env.svc.Get(a.ID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
	_, ok := env.svc.Current(sessionID)
	assert.False(t, ok)
}

func TestCompletePayment_UnknownAttempt(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.CompletePayment(context.Background(), "nope", gatewayResponse())
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestRun_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.svc.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
