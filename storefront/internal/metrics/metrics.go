// Package metrics exposes storefront counters in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_storefront/storefront/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type Metrics struct {
	gatherer prometheus.Gatherer

	checkouts *prometheus.CounterVec
	requests  *prometheus.HistogramVec
}

// New registers the storefront collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Finished checkout attempts by outcome and failure kind.",
		}, []string{"status", "reason"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(m.checkouts, m.requests)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveCheckout counts one finished attempt.
func (m *Metrics) ObserveCheckout(event domain.CheckoutEvent) {
	reason := event.Reason
	if event.Status == domain.CheckoutStatusSucceeded {
		reason = ""
	}
	m.checkouts.WithLabelValues(string(event.Status), reason).Inc()
}

// Middleware records request latency labelled with the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

type publisher interface {
	Publish(ctx context.Context, event domain.CheckoutEvent) error
}

// CountingPublisher counts every checkout outcome before handing it on.
type CountingPublisher struct {
	next    publisher
	metrics *Metrics
}

func NewCountingPublisher(next publisher, m *Metrics) *CountingPublisher {
	return &CountingPublisher{next: next, metrics: m}
}

func (p *CountingPublisher) Publish(ctx context.Context, event domain.CheckoutEvent) error {
	p.metrics.ObserveCheckout(event)
	return p.next.Publish(ctx, event)
}
