package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/example/order-lifecycle/internal/kafka"
	"github.com/example/order-lifecycle/internal/orders"
)

// producer is the outbound seam; satisfied by kafka.Producer.
type producer interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Publisher emits order snapshots on the order.* topics, at-least-once.
// Publish failures are logged and swallowed: by the time we publish, the
// order write is already durable, and a lost event must not fail the
// operation that triggered it.
type Publisher struct {
	producer producer
	service  string
	logger   zerolog.Logger
}

func NewPublisher(p producer, service string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		producer: p,
		service:  service,
		logger:   logger.With().Str("component", "event-publisher").Logger(),
	}
}

var _ orders.EventPublisher = (*Publisher)(nil)

func (p *Publisher) OrderCreated(ctx context.Context, o *orders.Order) {
	p.publish(TopicOrderCreated, o)
}

func (p *Publisher) OrderUpdated(ctx context.Context, o *orders.Order) {
	p.publish(TopicOrderUpdated, o)
}

func (p *Publisher) OrderCancelled(ctx context.Context, o *orders.Order) {
	p.publish(TopicOrderCancelled, o)
}

func (p *Publisher) publish(topic string, o *orders.Order) {
	payload, err := kafkax.Marshal(o)
	if err != nil {
		p.logger.Error().Err(err).Str("order_id", o.ID).Str("topic", topic).
			Msg("order snapshot not serializable, event dropped")
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     topic,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.service,
		CorrelationID: o.ID,
		Payload:       payload,
	}
	value, err := kafkax.Marshal(env)
	if err != nil {
		p.logger.Error().Err(err).Str("order_id", o.ID).Str("topic", topic).
			Msg("envelope not serializable, event dropped")
		return
	}
	p.producer.Publish(topic, PartitionKey(o.ID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(topic)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	p.logger.Debug().Str("order_id", o.ID).Str("topic", topic).Msg("event published")
}
