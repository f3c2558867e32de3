package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethodPending is the placeholder method on draft orders until the
// customer confirms with a real payment method.
const PaymentMethodPending = "pending"

var paymentMethods = map[string]bool{
	"credit_card":   true,
	"debit_card":    true,
	"paypal":        true,
	"bank_transfer": true,
}

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m string) bool { return paymentMethods[m] }

// Order is the aggregate root for a customer purchase. Item price and name
// are snapshots taken at creation time; later catalog changes never touch an
// existing order.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	ShippingAddress string          `json:"shippingAddress"`
	TrackingNumber  string          `json:"trackingNumber,omitempty"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	Currency        string          `json:"currency"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	ExpiresAt       *time.Time      `json:"expiresAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type OrderItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
	OrderID   string          `json:"orderId"`
}

// Clone returns a deep copy so store implementations can hand out mutable
// snapshots without aliasing their own state.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = make([]OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	if o.Metadata != nil {
		cp.Metadata = make(map[string]any, len(o.Metadata))
		for k, v := range o.Metadata {
			cp.Metadata[k] = v
		}
	}
	if o.ExpiresAt != nil {
		t := *o.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

// ItemInput is a requested line item: product reference plus quantity.
type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	Items           []ItemInput    `json:"items"`
	ShippingAddress string         `json:"shippingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
	Currency        string         `json:"currency,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// CreateDraftRequest creates a provisional, expiring order; item pricing is
// resolved at confirmation, not here.
type CreateDraftRequest struct {
	Items           []ItemInput    `json:"items"`
	ShippingAddress string         `json:"shippingAddress"`
	Currency        string         `json:"currency,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// UpdateOrderRequest is the owner-facing patch. Items are rejected outright:
// the line-item list is immutable after creation.
type UpdateOrderRequest struct {
	ShippingAddress string      `json:"shippingAddress,omitempty"`
	Items           []ItemInput `json:"items,omitempty"`
}

// ListFilter narrows FindAll. Zero values mean "no constraint".
type ListFilter struct {
	UserID string
	Status Status
}

// ProductInfo is the per-product snapshot returned by the inventory service.
type ProductInfo struct {
	Price decimal.Decimal
	Name  string
	Stock int
}
