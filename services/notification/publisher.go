package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"moveflow/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventPublisher publishes booking events as JSON on a topic exchange, with
// the event kind as routing key.
type EventPublisher struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
}

type publishedEvent struct {
	Kind       models.EventKind       `json:"kind"`
	Booking    models.BookingSnapshot `json:"booking"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func NewEventPublisher(url, exchange string) (*EventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &EventPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// NewEventPublisherWithChannel wraps an already declared channel.
func NewEventPublisherWithChannel(ch Channel, exchange string) *EventPublisher {
	return &EventPublisher{ch: ch, exchange: exchange}
}

func (p *EventPublisher) Notify(ctx context.Context, kind models.EventKind, b models.BookingSnapshot) error {
	body, err := json.Marshal(publishedEvent{Kind: kind, Booking: b, OccurredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, string(kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    b.ID + ":" + string(kind),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}

func (p *EventPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
