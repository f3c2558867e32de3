package orders

import (
	"strings"
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusPending, true},
		{StatusDraft, StatusExpired, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusShipped, false},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusPending, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusPending, false},
		{StatusExpired, StatusPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusSelfTransitionAlwaysAllowed(t *testing.T) {
	for s := range validNextStatus {
		if !s.CanTransitionTo(s) {
			t.Errorf("%s -> %s should be a permitted no-op", s, s)
		}
	}
	for p := range validNextPayment {
		if !p.CanTransitionTo(p) {
			t.Errorf("%s -> %s should be a permitted no-op", p, p)
		}
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentCompleted, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentRefunded, false},
		{PaymentPaid, PaymentCompleted, true},
		{PaymentPaid, PaymentRefunded, true},
		{PaymentPaid, PaymentFailed, false},
		{PaymentCompleted, PaymentRefunded, true},
		{PaymentCompleted, PaymentPending, false},
		{PaymentFailed, PaymentPending, true},
		{PaymentFailed, PaymentPaid, false},
		{PaymentRefunded, PaymentPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusCancelled, StatusExpired} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusPending, StatusProcessing, StatusShipped} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !PaymentRefunded.Terminal() {
		t.Error("refunded should be terminal")
	}
}

func TestInvalidTransitionErrorNamesAllowedSet(t *testing.T) {
	err := &InvalidTransitionError{
		Field: "status", From: string(StatusPending), To: string(StatusDelivered),
		Allowed: StatusPending.AllowedNext(),
	}
	msg := err.Error()
	for _, want := range []string{"pending", "delivered", "cancelled", "processing"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should mention %q", msg, want)
		}
	}
}
