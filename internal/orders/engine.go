package orders

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DraftTTL is how long a draft order stays confirmable before it may be
// expired.
const DraftTTL = 30 * time.Minute

// Inventory is the engine's view of the inventory service. Reserve and
// Release are advisory: their failures are logged by the engine but never
// fail the surrounding operation. Decrease is a permanent decrement and its
// failure is fatal to the caller.
type Inventory interface {
	ValidateProducts(ctx context.Context, productIDs []string) (map[string]ProductInfo, error)
	ReserveStock(ctx context.Context, productID string, qty int) error
	ReleaseStock(ctx context.Context, productID string, qty int) error
	DecreaseStock(ctx context.Context, productID string, qty int) error
}

// EventPublisher emits order snapshots after the order write is durable.
// Implementations log and swallow publish failures; a lost event never rolls
// back a committed order.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o *Order)
	OrderUpdated(ctx context.Context, o *Order)
	OrderCancelled(ctx context.Context, o *Order)
}

// Engine owns the order state machines. All mutations go through the store's
// atomic read-modify-write, so the HTTP path and the payment consumer cannot
// clobber each other's writes.
type Engine struct {
	store     Store
	inventory Inventory
	events    EventPublisher
	logger    zerolog.Logger

	now func() time.Time
}

func NewEngine(store Store, inv Inventory, events EventPublisher, logger zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		inventory: inv,
		events:    events,
		logger:    logger.With().Str("component", "order-engine").Logger(),
		now:       time.Now,
	}
}

// Create validates the request, snapshots product price/name, persists the
// order as PENDING and issues best-effort stock reservations. No side effect
// happens before validation passes.
func (e *Engine) Create(ctx context.Context, req CreateOrderRequest, userID string) (*Order, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if req.ShippingAddress == "" {
		return nil, validationf("shipping address is required")
	}
	if !ValidPaymentMethod(req.PaymentMethod) {
		return nil, validationf("unsupported payment method %q", req.PaymentMethod)
	}

	products, err := e.inventory.ValidateProducts(ctx, productIDs(req.Items))
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	orderID := uuid.NewString()
	total := decimal.Zero
	items := make([]OrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		p, ok := products[in.ProductID]
		if !ok {
			return nil, &ProductUnavailableError{ProductID: in.ProductID}
		}
		if in.Quantity > p.Stock {
			return nil, &InsufficientStockError{ProductID: in.ProductID, Requested: in.Quantity, Available: p.Stock}
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(in.Quantity))))
		items = append(items, OrderItem{
			ID:        uuid.NewString(),
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			Price:     p.Price,
			Name:      p.Name,
			OrderID:   orderID,
		})
	}

	o := &Order{
		ID:              orderID,
		UserID:          userID,
		Items:           items,
		TotalAmount:     total.Round(2),
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Currency:        currencyOrDefault(req.Currency),
		Metadata:        req.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.Create(ctx, o); err != nil {
		return nil, err
	}

	// Reservations are advisory. A failed reservation never blocks creation;
	// the ship-time decrease is the hard check.
	e.reserveStock(ctx, o)

	e.events.OrderCreated(ctx, o)
	return o, nil
}

// CreateDraft creates a provisional order without touching the product
// catalog; pricing is resolved at confirmation. Drafts expire after DraftTTL.
func (e *Engine) CreateDraft(ctx context.Context, req CreateDraftRequest, userID string) (*Order, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if req.ShippingAddress == "" {
		return nil, validationf("shipping address is required")
	}

	now := e.now().UTC()
	orderID := uuid.NewString()
	items := make([]OrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		items = append(items, OrderItem{
			ID:        uuid.NewString(),
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			OrderID:   orderID,
		})
	}
	expires := now.Add(DraftTTL)
	o := &Order{
		ID:              orderID,
		UserID:          userID,
		Items:           items,
		TotalAmount:     decimal.Zero,
		Status:          StatusDraft,
		PaymentStatus:   PaymentPending,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   PaymentMethodPending,
		Currency:        currencyOrDefault(req.Currency),
		Metadata:        req.Metadata,
		ExpiresAt:       &expires,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ConfirmOrder promotes a draft to PENDING/PAID, snapshotting current product
// price and name into the items and recording the payment reference.
func (e *Engine) ConfirmOrder(ctx context.Context, id, paymentIntentID, paymentMethod string) (*Order, error) {
	if paymentMethod != "" && !ValidPaymentMethod(paymentMethod) {
		return nil, validationf("unsupported payment method %q", paymentMethod)
	}
	o, err := e.store.Update(ctx, id, func(o *Order) error {
		if o.Status != StatusDraft {
			return &InvalidStateError{Op: "confirm", Current: o.Status, Allowed: []Status{StatusDraft}}
		}
		products, err := e.inventory.ValidateProducts(ctx, productIDsFromItems(o.Items))
		if err != nil {
			return err
		}
		total := decimal.Zero
		for i, it := range o.Items {
			p, ok := products[it.ProductID]
			if !ok {
				return &ProductUnavailableError{ProductID: it.ProductID}
			}
			o.Items[i].Price = p.Price
			o.Items[i].Name = p.Name
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		o.TotalAmount = total.Round(2)
		o.Status = StatusPending
		o.PaymentStatus = PaymentPaid
		o.PaymentIntentID = paymentIntentID
		if paymentMethod != "" {
			o.PaymentMethod = paymentMethod
		}
		o.ExpiresAt = nil
		o.UpdatedAt = e.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.events.OrderCreated(ctx, o)
	return o, nil
}

// ExpireOrder marks an abandoned draft as expired.
func (e *Engine) ExpireOrder(ctx context.Context, id string) (*Order, error) {
	o, err := e.store.Update(ctx, id, func(o *Order) error {
		if o.Status != StatusDraft {
			return &InvalidStateError{Op: "expire", Current: o.Status, Allowed: []Status{StatusDraft}}
		}
		o.Status = StatusExpired
		o.UpdatedAt = e.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.events.OrderUpdated(ctx, o)
	return o, nil
}

// UpdateStatus drives the fulfillment state machine. Entering SHIPPED
// requires a settled payment and permanently decreases stock for every item;
// any decrease failure aborts the whole transition before it is persisted.
// Entering CANCELLED from PENDING or PROCESSING releases reservations.
func (e *Engine) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, validationf("unknown status %q", next)
	}
	o, err := e.store.Update(ctx, id, func(o *Order) error {
		if o.Status == next {
			return nil
		}
		if !o.Status.CanTransitionTo(next) {
			return &InvalidTransitionError{
				Field: "status", From: string(o.Status), To: string(next),
				Allowed: o.Status.AllowedNext(),
			}
		}
		switch next {
		case StatusShipped:
			if o.PaymentStatus != PaymentPaid && o.PaymentStatus != PaymentCompleted {
				return ErrPaymentRequired
			}
			if err := e.decreaseStock(ctx, o); err != nil {
				return err
			}
		case StatusCancelled:
			if o.Status == StatusPending || o.Status == StatusProcessing {
				e.releaseStock(ctx, o)
			}
		}
		o.Status = next
		o.UpdatedAt = e.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.events.OrderUpdated(ctx, o)
	return o, nil
}

// UpdatePaymentStatus applies a payment outcome and derives the fulfillment
// side effects: a completed payment moves a pending order to processing, a
// failed payment cancels it and releases reserved stock.
func (e *Engine) UpdatePaymentStatus(ctx context.Context, id string, next PaymentStatus, paymentIntentID string) (*Order, error) {
	if !next.Valid() {
		return nil, validationf("unknown payment status %q", next)
	}
	o, err := e.store.Update(ctx, id, func(o *Order) error {
		if !o.PaymentStatus.CanTransitionTo(next) {
			return &InvalidTransitionError{
				Field: "paymentStatus", From: string(o.PaymentStatus), To: string(next),
				Allowed: o.PaymentStatus.AllowedNext(),
			}
		}
		o.PaymentStatus = next
		if paymentIntentID != "" {
			o.PaymentIntentID = paymentIntentID
		}
		switch {
		case next == PaymentCompleted && o.Status == StatusPending:
			o.Status = StatusProcessing
		case next == PaymentFailed && o.Status == StatusPending:
			e.releaseStock(ctx, o)
			o.Status = StatusCancelled
		}
		o.UpdatedAt = e.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.events.OrderUpdated(ctx, o)
	return o, nil
}

// Cancel cancels a pending or processing order and releases its
// reservations.
func (e *Engine) Cancel(ctx context.Context, id string) (*Order, error) {
	o, err := e.store.Update(ctx, id, func(o *Order) error {
		if o.Status != StatusPending && o.Status != StatusProcessing {
			return &InvalidStateError{Op: "cancel", Current: o.Status, Allowed: []Status{StatusPending, StatusProcessing}}
		}
		e.releaseStock(ctx, o)
		o.Status = StatusCancelled
		o.UpdatedAt = e.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.events.OrderCancelled(ctx, o)
	return o, nil
}

// Update is the owner-facing patch: shipping address only, only while the
// order is still PENDING. The item list is immutable after creation.
func (e *Engine) Update(ctx context.Context, id string, patch UpdateOrderRequest, userID string) (*Order, error) {
	o, err := e.store.Update(ctx, id, func(o *Order) error {
		if o.UserID != userID {
			return ErrForbidden
		}
		if len(patch.Items) > 0 {
			return ErrItemsImmutable
		}
		if o.Status != StatusPending {
			return &InvalidStateError{Op: "update", Current: o.Status, Allowed: []Status{StatusPending}}
		}
		if patch.ShippingAddress != "" {
			o.ShippingAddress = patch.ShippingAddress
		}
		o.UpdatedAt = e.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.events.OrderUpdated(ctx, o)
	return o, nil
}

func (e *Engine) FindOne(ctx context.Context, id string) (*Order, error) {
	return e.store.Get(ctx, id)
}

// GetOrderDetails is the service-to-service read used by collaborators that
// are trusted and need no ownership check.
func (e *Engine) GetOrderDetails(ctx context.Context, id string) (*Order, error) {
	return e.store.Get(ctx, id)
}

// FindOneForUser enforces ownership: admins see everything, users see only
// their own orders.
func (e *Engine) FindOneForUser(ctx context.Context, id, userID string, isAdmin bool) (*Order, error) {
	o, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (e *Engine) FindAll(ctx context.Context, f ListFilter) ([]*Order, error) {
	return e.store.List(ctx, f)
}

func (e *Engine) FindByUser(ctx context.Context, userID string) ([]*Order, error) {
	return e.store.List(ctx, ListFilter{UserID: userID})
}

// reserveStock issues one advisory reservation per item, concurrently.
// Failures are logged and swallowed.
func (e *Engine) reserveStock(ctx context.Context, o *Order) {
	var wg sync.WaitGroup
	for _, it := range o.Items {
		it := it
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.inventory.ReserveStock(ctx, it.ProductID, it.Quantity); err != nil {
				e.logger.Warn().Err(err).
					Str("order_id", o.ID).Str("product_id", it.ProductID).
					Msg("stock reservation failed")
			}
		}()
	}
	wg.Wait()
}

// releaseStock returns reserved stock, best-effort.
func (e *Engine) releaseStock(ctx context.Context, o *Order) {
	var wg sync.WaitGroup
	for _, it := range o.Items {
		it := it
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.inventory.ReleaseStock(ctx, it.ProductID, it.Quantity); err != nil {
				e.logger.Warn().Err(err).
					Str("order_id", o.ID).Str("product_id", it.ProductID).
					Msg("stock release failed")
			}
		}()
	}
	wg.Wait()
}

// decreaseStock permanently decrements stock for every item and fails the
// caller on the first error.
func (e *Engine) decreaseStock(ctx context.Context, o *Order) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, it := range o.Items {
		it := it
		g.Go(func() error {
			return e.inventory.DecreaseStock(gctx, it.ProductID, it.Quantity)
		})
	}
	return g.Wait()
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return validationf("order must contain at least one item")
	}
	for _, it := range items {
		if it.ProductID == "" {
			return validationf("item is missing a product id")
		}
		if it.Quantity < 1 {
			return validationf("invalid quantity %d for product %s", it.Quantity, it.ProductID)
		}
	}
	return nil
}

func productIDs(items []ItemInput) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			out = append(out, it.ProductID)
		}
	}
	return out
}

func productIDsFromItems(items []OrderItem) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			out = append(out, it.ProductID)
		}
	}
	return out
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}
