package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/order-lifecycle/internal/orders"
	"github.com/example/order-lifecycle/internal/redisx"
)

// Identity headers are filled in by the gateway; authentication itself is not
// this service's job.
const (
	headerUserID      = "X-User-Id"
	headerUserRole    = "X-User-Role"
	headerIdempotency = "Idempotency-Key"
)

// OrdersHandler is the thin HTTP adapter over the lifecycle engine. It owns
// no business rules: it decodes, delegates, and maps engine errors onto
// status codes.
type OrdersHandler struct {
	Engine *orders.Engine
	Redis  *redis.Client
	Logger zerolog.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.create)
	r.Post("/orders/draft", h.createDraft)
	r.Post("/orders/{id}/confirm", h.confirm)
	r.Post("/orders/{id}/expire", h.expire)
	r.Get("/orders", h.list)
	r.Get("/orders/my-orders", h.listMine)
	r.Get("/orders/{id}", h.get)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Patch("/orders/{id}/payment-status", h.updatePaymentStatus)
	r.Patch("/orders/{id}", h.update)
	r.Delete("/orders/{id}", h.cancel)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var (
		ve *orders.ValidationError
		te *orders.InvalidTransitionError
		se *orders.InvalidStateError
		pe *orders.ProductUnavailableError
		ie *orders.InsufficientStockError
	)
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, orders.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, orders.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, orders.ErrPaymentRequired):
		code = http.StatusPaymentRequired
	case errors.Is(err, orders.ErrItemsImmutable),
		errors.As(err, &ve), errors.As(err, &pe), errors.As(err, &ie):
		code = http.StatusBadRequest
	case errors.As(err, &te), errors.As(err, &se):
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		return
	}
	var req orders.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Fast-path idempotency: a retried create with the same key returns the
	// original order instead of double-charging.
	idemKey := ""
	if k := r.Header.Get(headerIdempotency); k != "" && h.Redis != nil {
		idemKey = fmt.Sprintf(redisx.KeyIdemOrderCreate, k)
		if id, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && id != "" {
			if o, err := h.Engine.FindOne(ctx, id); err == nil {
				writeJSON(w, http.StatusOK, o)
				return
			}
		}
	}

	o, err := h.Engine.Create(ctx, req, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if idemKey != "" {
		_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) createDraft(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		return
	}
	var req orders.CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Engine.CreateDraft(r.Context(), req, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

type confirmRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	PaymentMethodID string `json:"paymentMethodId,omitempty"`
}

func (h *OrdersHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Engine.ConfirmOrder(r.Context(), chi.URLParam(r, "id"), req.PaymentIntentID, req.PaymentMethodID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) expire(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.ExpireOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerUserRole) != "admin" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
		return
	}
	f := orders.ListFilter{
		UserID: r.URL.Query().Get("userId"),
		Status: orders.Status(r.URL.Query().Get("status")),
	}
	out, err := h.Engine.FindAll(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		return
	}
	out, err := h.Engine.FindByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrder, id)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var o orders.Order
			if json.Unmarshal([]byte(s), &o) == nil && h.authorized(r, &o) {
				writeJSON(w, http.StatusOK, json.RawMessage(s))
				return
			}
		}
	}

	o, err := h.Engine.FindOneForUser(ctx, id, r.Header.Get(headerUserID), r.Header.Get(headerUserRole) == "admin")
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) authorized(r *http.Request, o *orders.Order) bool {
	return r.Header.Get(headerUserRole) == "admin" || o.UserID == r.Header.Get(headerUserID)
}

type updateStatusRequest struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerUserRole) != "admin" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Engine.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

type updatePaymentStatusRequest struct {
	PaymentStatus   orders.PaymentStatus `json:"paymentStatus"`
	PaymentIntentID string               `json:"paymentIntentId,omitempty"`
}

func (h *OrdersHandler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerUserRole) != "admin" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
		return
	}
	var req updatePaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Engine.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "id"), req.PaymentStatus, req.PaymentIntentID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) update(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
		return
	}
	var patch orders.UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	o, err := h.Engine.Update(r.Context(), chi.URLParam(r, "id"), patch, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	o, err := h.Engine.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrder, o.ID)
	if err := h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err(); err != nil {
		h.Logger.Warn().Err(err).Str("order_id", o.ID).Msg("order cache write failed")
	}
}
