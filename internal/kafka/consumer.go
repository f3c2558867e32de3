package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Handler processes one message. Returning nil commits the offset; returning
// an error leaves the message uncommitted for redelivery. Handlers that must
// acknowledge regardless of outcome (the payment consumer does) log the
// failure and return nil.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r      *kafka.Reader
	logger zerolog.Logger
}

// NewConsumer reads one topic with manual offset commits. Consumption is
// sequential per message; per-order ordering is whatever the partitioning
// gives us.
func NewConsumer(brokers []string, group, topic string, logger zerolog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return &Consumer{
		r:      r,
		logger: logger.With().Str("component", "kafka-consumer").Str("topic", topic).Logger(),
	}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		if err := h(ctx, m); err != nil {
			c.logger.Error().Err(err).Msg("handler error, message not committed")
			time.Sleep(200 * time.Millisecond) // light backoff before redelivery
			continue
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			c.logger.Error().Err(err).Msg("offset commit failed")
		}
	}
}
