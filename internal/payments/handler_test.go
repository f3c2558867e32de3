package payments

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/example/order-lifecycle/internal/events"
	"github.com/example/order-lifecycle/internal/orders"
)

type paymentCall struct {
	OrderID  string
	Status   orders.PaymentStatus
	IntentID string
}

type fakeUpdater struct {
	calls []paymentCall
	err   error
}

func (f *fakeUpdater) UpdatePaymentStatus(ctx context.Context, id string, next orders.PaymentStatus, intentID string) (*orders.Order, error) {
	f.calls = append(f.calls, paymentCall{id, next, intentID})
	if f.err != nil {
		return nil, f.err
	}
	return &orders.Order{ID: id, PaymentStatus: next}, nil
}

func newTestHandler(u *fakeUpdater) *Handler {
	return NewHandler(u, nil, zerolog.Nop())
}

func msg(topic, value string) kafkago.Message {
	return kafkago.Message{Topic: topic, Value: []byte(value)}
}

func TestHandleProcessedSucceeded(t *testing.T) {
	u := &fakeUpdater{}
	h := newTestHandler(u)

	err := h.HandleProcessed(context.Background(),
		msg(events.TopicPaymentProcessed, `{"orderId":"o1","status":"SUCCEEDED","paymentIntentId":"pi_1"}`))
	if err != nil {
		t.Fatalf("HandleProcessed: %v", err)
	}
	if len(u.calls) != 1 {
		t.Fatalf("engine calls = %d, want 1", len(u.calls))
	}
	want := paymentCall{"o1", orders.PaymentCompleted, "pi_1"}
	if u.calls[0] != want {
		t.Errorf("call = %+v, want %+v", u.calls[0], want)
	}
}

func TestHandleProcessedOtherOutcomeStaysPending(t *testing.T) {
	u := &fakeUpdater{}
	h := newTestHandler(u)

	if err := h.HandleProcessed(context.Background(),
		msg(events.TopicPaymentProcessed, `{"orderId":"o1","status":"REQUIRES_ACTION"}`)); err != nil {
		t.Fatalf("HandleProcessed: %v", err)
	}
	if len(u.calls) != 1 || u.calls[0].Status != orders.PaymentPending {
		t.Errorf("calls = %+v, want one pending update", u.calls)
	}
}

func TestHandleFailed(t *testing.T) {
	u := &fakeUpdater{}
	h := newTestHandler(u)

	if err := h.HandleFailed(context.Background(),
		msg(events.TopicPaymentFailed, `{"orderId":"o1","paymentIntentId":"pi_9"}`)); err != nil {
		t.Fatalf("HandleFailed: %v", err)
	}
	if len(u.calls) != 1 || u.calls[0].Status != orders.PaymentFailed {
		t.Errorf("calls = %+v, want one failed update", u.calls)
	}
}

func TestMissingOrderIDDroppedAndAcked(t *testing.T) {
	u := &fakeUpdater{}
	h := newTestHandler(u)

	if err := h.HandleProcessed(context.Background(),
		msg(events.TopicPaymentProcessed, `{"status":"SUCCEEDED"}`)); err != nil {
		t.Fatalf("missing orderId must still ack, got %v", err)
	}
	if len(u.calls) != 0 {
		t.Errorf("engine must not be called for invalid payloads, got %+v", u.calls)
	}
}

func TestMalformedPayloadDroppedAndAcked(t *testing.T) {
	u := &fakeUpdater{}
	h := newTestHandler(u)

	if err := h.HandleProcessed(context.Background(),
		msg(events.TopicPaymentProcessed, `{not json`)); err != nil {
		t.Fatalf("malformed payload must still ack, got %v", err)
	}
	if len(u.calls) != 0 {
		t.Errorf("engine must not be called, got %+v", u.calls)
	}
}

func TestUnknownOrderDoesNotEscapeHandler(t *testing.T) {
	u := &fakeUpdater{err: orders.ErrNotFound}
	h := newTestHandler(u)

	if err := h.HandleProcessed(context.Background(),
		msg(events.TopicPaymentProcessed, `{"orderId":"ghost","status":"SUCCEEDED"}`)); err != nil {
		t.Fatalf("unknown order must be logged and acked, got %v", err)
	}
	if len(u.calls) != 1 {
		t.Errorf("engine calls = %d, want 1 attempt", len(u.calls))
	}
}
