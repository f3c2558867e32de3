package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrForbidden       = errors.New("not allowed to access this order")
	ErrItemsImmutable  = errors.New("order items cannot be changed after creation")
	ErrPaymentRequired = errors.New("order must be paid before it can be shipped")
)

// ValidationError rejects a malformed request before any side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid order request: " + e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a state-machine violation together with the
// set of transitions that would have been accepted.
type InvalidTransitionError struct {
	Field   string // "status" or "paymentStatus"
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %q to %q (allowed: %s)",
		e.Field, e.From, e.To, strings.Join(e.Allowed, ", "))
}

// InvalidStateError rejects an operation whose precondition on the current
// status does not hold (e.g. cancelling a shipped order).
type InvalidStateError struct {
	Op      string
	Current Status
	Allowed []Status
}

func (e *InvalidStateError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("cannot %s order in status %q (requires one of: %s)",
		e.Op, e.Current, strings.Join(allowed, ", "))
}

// ProductUnavailableError is returned when a referenced product does not
// exist or is inactive. An order referencing any unavailable product is
// rejected wholesale.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// InsufficientStockError is returned when requested quantity exceeds stock,
// either at creation or at the ship-time decrease.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
