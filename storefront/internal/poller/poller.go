package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/fjod/go_storefront/storefront/domain"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the poller uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Sessions forgets in-memory carts so the next access reloads them.
type Sessions interface {
	Drop(sessionID string)
}

// Poller follows checkout events published by every storefront instance and
// evicts the cached cart of each session whose checkout succeeded, so
// instances sharing snapshot storage pick up the cleared cart.
type Poller struct {
	reader   MessageReader
	sessions Sessions
	log      *slog.Logger
}

func NewKafkaReader(groupID, topic string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})
}

func NewPoller(reader MessageReader, sessions Sessions, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{reader: reader, sessions: sessions, log: log}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			p.log.WarnContext(ctx, "error reading checkout event", "error", err)
			continue
		}
		p.handle(ctx, m)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing checkout event reader", "error", err)
	}
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) {
	if eventType(m) != "CheckoutSucceeded" {
		return
	}

	var event domain.CheckoutEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.WarnContext(ctx, "error parsing checkout event", "error", err)
		return
	}
	if event.SessionID == "" {
		p.log.WarnContext(ctx, "checkout event without session id", "event_id", event.EventID)
		return
	}
	p.sessions.Drop(event.SessionID)
	p.log.DebugContext(ctx, "cart evicted after checkout", "session_id", event.SessionID, "order_id", event.OrderID)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
