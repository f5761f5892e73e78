package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_storefront/storefront/domain"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "storefront-checkout"

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

// EventPublisher sends checkout outcomes to Kafka, keyed by order id so the
// events of one order stay ordered.
type EventPublisher struct {
	writer MessageWriter
	log    *slog.Logger
}

func NewEventPublisher(w MessageWriter, log *slog.Logger) *EventPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &EventPublisher{writer: w, log: log}
}

func (p *EventPublisher) Publish(ctx context.Context, event domain.CheckoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout event: %w", err)
	}

	key := event.OrderID
	if key == "" {
		key = event.AttemptID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write checkout event: %w", err)
	}
	p.log.DebugContext(ctx, "checkout event published", "event_id", event.EventID, "event_type", event.Type(), "order_id", event.OrderID)
	return nil
}

func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops events. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, domain.CheckoutEvent) error { return nil }

func (Nop) Close() error { return nil }
