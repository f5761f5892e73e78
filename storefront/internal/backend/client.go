// Package backend is the REST client for the store's order and payment API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/fjod/go_storefront/storefront/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrUnavailable is returned while the circuit breaker refuses calls.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrMissingOrderID means an order was accepted without an identifier.
	ErrMissingOrderID = errors.New("backend returned order without id")
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// APIError is a non-success answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// envelope is the response wrapper used by every endpoint. A missing success
// flag on a 2xx response counts as success.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) ok() bool {
	return e.Success == nil || *e.Success
}

type rawResponse struct {
	status int
	body   []byte
}

type Config struct {
	BaseURL string
	// Token is sent as a bearer token unless the request context carries one.
	Token   string
	Timeout time.Duration
	Breaker circuitbreaker.Config
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[rawResponse]
	log     *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = circuitbreaker.DefaultConfig("backend-api")
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:  circuitbreaker.New[rawResponse](cfg.Breaker, log, nil),
		log: log,
	}
}

type tokenKey struct{}

// WithToken makes calls made with ctx authenticate as the given user token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

// CreateOrder submits POST /orders.
func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	var order domain.Order
	if err := c.call(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return domain.Order{}, err
	}
	if order.ID == "" {
		return domain.Order{}, ErrMissingOrderID
	}
	return order, nil
}

// UserOrders fetches GET /orders/user for the authenticated shopper.
func (c *Client) UserOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.call(ctx, http.MethodGet, "/orders/user", nil, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// CreatePayment asks the backend for a gateway session. The returned session
// may lack a gateway order id; callers decide what that means.
func (c *Client) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (domain.PaymentSession, error) {
	var session domain.PaymentSession
	if err := c.call(ctx, http.MethodPost, "/payment/create", req, &session); err != nil {
		return domain.PaymentSession{}, err
	}
	return session, nil
}

// VerifyPayment submits the gateway's completion payload. A 2xx answer with
// success=false is a verdict, not an error.
func (c *Client) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (domain.VerifyResult, error) {
	env, err := c.do(ctx, http.MethodPost, "/payment/verify", req)
	if err != nil {
		return domain.VerifyResult{}, err
	}
	return domain.VerifyResult{Success: env.ok(), Message: env.Message}, nil
}

// call performs a request whose envelope must report success and decodes
// data into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	env, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if !env.ok() {
		return &APIError{StatusCode: http.StatusOK, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// do sends one request through the breaker. No retries are attempted.
func (c *Client) do(ctx context.Context, method, path string, body any) (envelope, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	raw, err := c.cb.Execute(func() (rawResponse, error) {
		return c.send(ctx, method, path, payload)
	})
	if circuitbreaker.IsOpen(err) {
		return envelope{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil && raw.status == 0 {
		return envelope{}, err
	}

	var env envelope
	if len(bytes.TrimSpace(raw.body)) > 0 {
		if decErr := json.Unmarshal(raw.body, &env); decErr != nil && raw.status < 300 {
			return envelope{}, fmt.Errorf("decode %s %s envelope: %w", method, path, decErr)
		}
	}
	if raw.status < 200 || raw.status >= 300 {
		c.log.WarnContext(ctx, "backend call failed", "method", method, "path", path, "status", raw.status, "message", env.Message)
		return envelope{}, &APIError{StatusCode: raw.status, Message: env.Message}
	}
	return env, nil
}

// send returns an error only for transport failures and 5xx answers, which are
// the outcomes that count against the breaker.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (rawResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return rawResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return rawResponse{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return rawResponse{}, fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	raw := rawResponse{status: resp.StatusCode, body: b}
	if resp.StatusCode >= 500 {
		return raw, fmt.Errorf("%s %s: server error %d", method, path, resp.StatusCode)
	}
	return raw, nil
}

func (c *Client) bearer(ctx context.Context) string {
	if t := tokenFrom(ctx); t != "" {
		return t
	}
	return c.token
}
