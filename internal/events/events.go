package events

import (
	"encoding/json"
	"time"
)

const (
	// Outbound order domain topics.
	TopicOrderCreated   = "order.created"
	TopicOrderUpdated   = "order.updated"
	TopicOrderCancelled = "order.cancelled"

	// Inbound payment domain topics.
	TopicPaymentProcessed = "payment.processed"
	TopicPaymentFailed    = "payment.failed"
)

// Envelope wraps every outbound event. The payload is the full order
// snapshot at publish time.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// PartitionKey keeps all events for one order on one partition.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

// PaymentProcessed is the inbound payload on payment.processed. Status is the
// payment service's outcome string; "SUCCEEDED" is the only success value.
type PaymentProcessed struct {
	OrderID         string `json:"orderId"`
	Status          string `json:"status"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}

const PaymentOutcomeSucceeded = "SUCCEEDED"

// PaymentFailed is the inbound payload on payment.failed.
type PaymentFailed struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}
