package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

var ErrScriptUnavailable = errors.New("payment gateway script unavailable")

// ScriptLoader fetches the gateway's client script once per process.
// Concurrent callers share a single fetch and a failed fetch is retried by
// the next caller.
type ScriptLoader struct {
	url  string
	http *http.Client
	log  *slog.Logger

	sfg    singleflight.Group
	mu     sync.RWMutex
	script []byte
}

func NewScriptLoader(url string, timeout time.Duration, log *slog.Logger) *ScriptLoader {
	if url == "" {
		url = DefaultScriptURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &ScriptLoader{
		url: url,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

func (l *ScriptLoader) URL() string {
	return l.url
}

// Load fetches the script unless it is already held. The shared fetch is
// detached from the caller that started it and bounded by the loader's own
// timeout, so a caller giving up does not fail the others waiting on it.
func (l *ScriptLoader) Load(ctx context.Context) error {
	if l.Loaded() {
		return nil
	}
	ch := l.sfg.DoChan("script", func() (interface{}, error) {
		if l.Loaded() {
			return nil, nil
		}
		fctx := context.WithoutCancel(ctx)
		b, err := l.fetch(fctx)
		if err != nil {
			l.log.WarnContext(fctx, "payment gateway script load failed", "url", l.url, "error", err)
			return nil, err
		}
		l.mu.Lock()
		l.script = b
		l.mu.Unlock()
		l.log.InfoContext(fctx, "payment gateway script loaded", "url", l.url, "bytes", len(b))
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrScriptUnavailable, ctx.Err())
	}
}

func (l *ScriptLoader) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.script != nil
}

// Script returns the loaded script, or false if it has not been loaded yet.
func (l *ScriptLoader) Script() ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.script, l.script != nil
}

func (l *ScriptLoader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptUnavailable, err)
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrScriptUnavailable, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptUnavailable, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty script", ErrScriptUnavailable)
	}
	return b, nil
}
