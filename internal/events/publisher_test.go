package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/example/order-lifecycle/internal/orders"
)

type recordedMessage struct {
	Topic string
	Key   []byte
	Value []byte
}

type fakeProducer struct {
	messages []recordedMessage
}

func (f *fakeProducer) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	f.messages = append(f.messages, recordedMessage{topic, key, value})
}

func testOrder() *orders.Order {
	return &orders.Order{
		ID:            "order-1",
		UserID:        "user-1",
		Status:        orders.StatusPending,
		PaymentStatus: orders.PaymentPending,
		TotalAmount:   decimal.RequireFromString("46.97"),
		Currency:      "USD",
		Items: []orders.OrderItem{
			{ID: "i1", ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10.99"), Name: "Headphones", OrderID: "order-1"},
		},
	}
}

func TestPublishWrapsSnapshotInEnvelope(t *testing.T) {
	fp := &fakeProducer{}
	p := NewPublisher(fp, "order-service", zerolog.Nop())

	p.OrderCreated(context.Background(), testOrder())

	if len(fp.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(fp.messages))
	}
	m := fp.messages[0]
	if m.Topic != TopicOrderCreated {
		t.Errorf("topic = %q, want %q", m.Topic, TopicOrderCreated)
	}
	if string(m.Key) != "order-1" {
		t.Errorf("partition key = %q, want order id", m.Key)
	}

	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		t.Fatalf("envelope decode: %v", err)
	}
	if env.EventType != TopicOrderCreated || env.EventVersion != 1 {
		t.Errorf("envelope = %+v", env)
	}
	if env.Producer != "order-service" || env.CorrelationID != "order-1" {
		t.Errorf("envelope = %+v", env)
	}

	var snapshot orders.Order
	if err := json.Unmarshal(env.Payload, &snapshot); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if snapshot.ID != "order-1" || len(snapshot.Items) != 1 {
		t.Errorf("snapshot = %+v", snapshot)
	}
	if !snapshot.TotalAmount.Equal(decimal.RequireFromString("46.97")) {
		t.Errorf("snapshot total = %s", snapshot.TotalAmount)
	}
}

func TestDecimalFieldsSerializeAsStrings(t *testing.T) {
	fp := &fakeProducer{}
	p := NewPublisher(fp, "order-service", zerolog.Nop())

	p.OrderUpdated(context.Background(), testOrder())

	var env Envelope
	if err := json.Unmarshal(fp.messages[0].Value, &env); err != nil {
		t.Fatalf("envelope decode: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(env.Payload, &raw); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	// Money must cross the wire as strings, not floats.
	if string(raw["totalAmount"]) != `"46.97"` {
		t.Errorf("totalAmount on the wire = %s, want \"46.97\"", raw["totalAmount"])
	}
}

func TestEachTopicGetsItsOwnEvent(t *testing.T) {
	fp := &fakeProducer{}
	p := NewPublisher(fp, "order-service", zerolog.Nop())
	o := testOrder()

	p.OrderCreated(context.Background(), o)
	p.OrderUpdated(context.Background(), o)
	p.OrderCancelled(context.Background(), o)

	want := []string{TopicOrderCreated, TopicOrderUpdated, TopicOrderCancelled}
	if len(fp.messages) != len(want) {
		t.Fatalf("messages = %d, want %d", len(fp.messages), len(want))
	}
	for i, m := range fp.messages {
		if m.Topic != want[i] {
			t.Errorf("message %d topic = %q, want %q", i, m.Topic, want[i])
		}
	}
}
