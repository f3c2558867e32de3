package payments

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/example/order-lifecycle/internal/events"
	kafkax "github.com/example/order-lifecycle/internal/kafka"
	"github.com/example/order-lifecycle/internal/orders"
	"github.com/example/order-lifecycle/internal/redisx"
)

// PaymentUpdater is the slice of the order engine this consumer drives.
type PaymentUpdater interface {
	UpdatePaymentStatus(ctx context.Context, id string, next orders.PaymentStatus, paymentIntentID string) (*orders.Order, error)
}

// Handler consumes payment.processed and payment.failed and maps outcomes
// onto the order payment state machine. Every message is acknowledged no
// matter what happened downstream: a poison or stale payment event must not
// wedge the queue, so the consumer is effectively at-most-once on top of the
// broker's at-least-once delivery.
type Handler struct {
	Engine PaymentUpdater
	Redis  *redis.Client
	Logger zerolog.Logger
}

func NewHandler(engine PaymentUpdater, rdb *redis.Client, logger zerolog.Logger) *Handler {
	return &Handler{
		Engine: engine,
		Redis:  rdb,
		Logger: logger.With().Str("component", "payment-consumer").Logger(),
	}
}

// HandleProcessed handles payment.processed. A "SUCCEEDED" outcome completes
// the payment; anything else leaves it pending.
func (h *Handler) HandleProcessed(ctx context.Context, m kafkago.Message) error {
	p, err := kafkax.Unwrap[events.PaymentProcessed](m.Value)
	if err != nil {
		h.Logger.Error().Err(err).Str("topic", m.Topic).Msg("malformed payment event dropped")
		return nil
	}
	if !h.validOrder(p.OrderID) {
		return nil
	}
	if h.duplicate(ctx, events.TopicPaymentProcessed, p.OrderID, p.PaymentIntentID) {
		return nil
	}

	next := orders.PaymentPending
	if p.Status == events.PaymentOutcomeSucceeded {
		next = orders.PaymentCompleted
	}
	h.apply(ctx, p.OrderID, next, p.PaymentIntentID)
	return nil
}

// HandleFailed handles payment.failed.
func (h *Handler) HandleFailed(ctx context.Context, m kafkago.Message) error {
	p, err := kafkax.Unwrap[events.PaymentFailed](m.Value)
	if err != nil {
		h.Logger.Error().Err(err).Str("topic", m.Topic).Msg("malformed payment event dropped")
		return nil
	}
	if !h.validOrder(p.OrderID) {
		return nil
	}
	if h.duplicate(ctx, events.TopicPaymentFailed, p.OrderID, p.PaymentIntentID) {
		return nil
	}
	h.apply(ctx, p.OrderID, orders.PaymentFailed, p.PaymentIntentID)
	return nil
}

func (h *Handler) validOrder(orderID string) bool {
	if orderID == "" {
		h.Logger.Error().Msg("payment event without order id dropped")
		return false
	}
	return true
}

// duplicate dedups on (topic, order, intent) so broker redelivery does not
// re-drive the state machine. Dedup is skipped when redis is not wired.
func (h *Handler) duplicate(ctx context.Context, topic, orderID, intentID string) bool {
	if h.Redis == nil {
		return false
	}
	key := fmt.Sprintf(redisx.KeyDedup, "payments", topic+":"+orderID+":"+intentID)
	ok, err := h.Redis.SetNX(ctx, key, "1", redisx.TTLDedup).Result()
	if err != nil {
		h.Logger.Warn().Err(err).Msg("dedup check failed, processing anyway")
		return false
	}
	if !ok {
		h.Logger.Debug().Str("order_id", orderID).Str("topic", topic).Msg("duplicate payment event skipped")
	}
	return !ok
}

func (h *Handler) apply(ctx context.Context, orderID string, next orders.PaymentStatus, intentID string) {
	if _, err := h.Engine.UpdatePaymentStatus(ctx, orderID, next, intentID); err != nil {
		// Logged and dropped: unknown orders, terminal orders and infra
		// failures all end here, and the message is still acknowledged.
		h.Logger.Error().Err(err).
			Str("order_id", orderID).Str("payment_status", string(next)).
			Msg("payment event not applied")
		return
	}
	h.Logger.Info().Str("order_id", orderID).Str("payment_status", string(next)).
		Msg("payment event applied")
}
