package orders

import "sort"

// Status is the fulfillment state of an order.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// PaymentStatus tracks the payment lifecycle independently of fulfillment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

var validNextStatus = map[Status]map[Status]bool{
	StatusDraft:      {StatusPending: true, StatusExpired: true, StatusCancelled: true},
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusExpired:    {},
}

var validNextPayment = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:   {PaymentPaid: true, PaymentCompleted: true, PaymentFailed: true},
	PaymentPaid:      {PaymentCompleted: true, PaymentRefunded: true},
	PaymentCompleted: {PaymentRefunded: true},
	PaymentFailed:    {PaymentPending: true}, // retry
	PaymentRefunded:  {},
}

// CanTransitionTo reports whether the transition is allowed.
// Staying on the same value is always a permitted no-op.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	return validNextStatus[s][next]
}

func (s Status) Terminal() bool { return len(validNextStatus[s]) == 0 }

func (s Status) Valid() bool {
	_, ok := validNextStatus[s]
	return ok
}

// AllowedNext returns the permitted next statuses, sorted for stable messages.
func (s Status) AllowedNext() []string {
	out := make([]string, 0, len(validNextStatus[s]))
	for n := range validNextStatus[s] {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}

func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if p == next {
		return true
	}
	return validNextPayment[p][next]
}

func (p PaymentStatus) Terminal() bool { return len(validNextPayment[p]) == 0 }

func (p PaymentStatus) Valid() bool {
	_, ok := validNextPayment[p]
	return ok
}

func (p PaymentStatus) AllowedNext() []string {
	out := make([]string, 0, len(validNextPayment[p]))
	for n := range validNextPayment[p] {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}
