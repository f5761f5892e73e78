package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Payment  *PaymentHandler
	Orders   *OrdersHandler
	Gateway  *GatewayHandler
	Health   map[string]HealthCheck
	// Metrics is optional; when set, /metrics is served.
	Metrics *metrics.Metrics
}

func NewRouter(h Handlers, log *slog.Logger, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	r.Get("/health", health(h.Health))
	r.Get("/gateway/checkout.js", h.Gateway.CheckoutScript)

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware)
		r.Use(AuthPassthrough)

		r.Get("/payment/success", h.Payment.Result)

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}/{size}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}/{size}", h.Cart.RemoveItem)
			})
			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", h.Checkout.InitiateCheckout)
				r.Get("/", h.Checkout.CurrentCheckout)
				r.Post("/callback", h.Checkout.GatewayCallback)
				r.Get("/{id}", h.Checkout.GetCheckout)
			})
			r.Get("/payment/result", h.Payment.Result)
			r.Get("/orders", h.Orders.ListOrders)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

func health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		respondJSON(w, status, body)
	}
}
