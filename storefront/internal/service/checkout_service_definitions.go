package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	d "github.com/fjod/go_storefront/storefront/domain"
	"github.com/fjod/go_storefront/storefront/internal/cart"
)

// Carts resolves a shopper session to its cart.
type Carts interface {
	Get(ctx context.Context, sessionID string) *cart.Store
}

type OrdersAPI interface {
	CreateOrder(ctx context.Context, req d.CreateOrderRequest) (d.Order, error)
}

type PaymentsAPI interface {
	CreatePayment(ctx context.Context, req d.CreatePaymentRequest) (d.PaymentSession, error)
	VerifyPayment(ctx context.Context, req d.VerifyPaymentRequest) (d.VerifyResult, error)
}

type ScriptLoader interface {
	Load(ctx context.Context) error
}

// Widget is the gateway's hosted checkout UI.
type Widget interface {
	Open(ctx context.Context, opts d.WidgetOptions) error
	Close(gatewayOrderID string)
}

type Publisher interface {
	Publish(ctx context.Context, event d.CheckoutEvent) error
}

type Options struct {
	StoreName  string
	Currency   string
	ThemeColor string
	// GatewayTimeout bounds how long an attempt may wait for the widget.
	GatewayTimeout time.Duration
	// Retain is how long finished attempts stay queryable.
	Retain time.Duration
	// RequestTimeout bounds each backend call.
	RequestTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		StoreName:      "ALGUD",
		Currency:       "INR",
		ThemeColor:     "#000000",
		GatewayTimeout: 15 * time.Minute,
		Retain:         time.Hour,
		RequestTimeout: 15 * time.Second,
	}
}

type Deps struct {
	Carts     Carts
	Orders    OrdersAPI
	Payments  PaymentsAPI
	Script    ScriptLoader
	Widget    Widget
	Publisher Publisher
	Notifier  Notifier
	Log       *slog.Logger
}

type attempt struct {
	d.Attempt
	amount   int64
	currency string
}

type CheckoutService struct {
	carts     Carts
	orders    OrdersAPI
	payments  PaymentsAPI
	script    ScriptLoader
	widget    Widget
	publisher Publisher
	notifier  Notifier
	opts      Options
	log       *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	attempts  map[string]*attempt
	bySession map[string]string
}

func NewCheckoutService(deps Deps, opts Options) *CheckoutService {
	def := DefaultOptions()
	if opts.StoreName == "" {
		opts.StoreName = def.StoreName
	}
	if opts.Currency == "" {
		opts.Currency = def.Currency
	}
	if opts.ThemeColor == "" {
		opts.ThemeColor = def.ThemeColor
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = def.GatewayTimeout
	}
	if opts.Retain <= 0 {
		opts.Retain = def.Retain
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	return &CheckoutService{
		carts:     deps.Carts,
		orders:    deps.Orders,
		payments:  deps.Payments,
		script:    deps.Script,
		widget:    deps.Widget,
		publisher: deps.Publisher,
		notifier:  notifier,
		opts:      opts,
		log:       log,
		now:       time.Now,
		attempts:  make(map[string]*attempt),
		bySession: make(map[string]string),
	}
}
