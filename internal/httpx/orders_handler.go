package httpx

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-farm-orders/internal/checkout"
	"github.com/ariefcatur/go-farm-orders/internal/inventory"
	"github.com/ariefcatur/go-farm-orders/internal/lifecycle"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"io"
	"net/http"
	"strconv"
	"time"
)

type PlaceOrderReq struct {
	BuyerID       string          `json:"buyer_id"`
	ProductID     string          `json:"product_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Delivery      orders.Delivery `json:"delivery"`
	PaymentMethod string          `json:"payment_method"`
}

// TransitionReq carries whichever free-text field the action uses.
type TransitionReq struct {
	Reason     string `json:"reason,omitempty"`
	TrackingNo string `json:"tracking_no,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Note       string `json:"note,omitempty"`
}

type StockResp struct {
	ProductID string          `json:"product_id"`
	Available decimal.Decimal `json:"available_quantity"`
}

type OrdersHandler struct {
	Checkout    *checkout.Coordinator
	Lifecycle   *lifecycle.Service
	Resolver    *lifecycle.Resolver
	Sweeper     *lifecycle.Sweeper
	Ledger      *inventory.Ledger
	Idempotency *Idempotency
	Timeout     time.Duration
	Log         *zap.Logger
}

// Register mounts the order routes. mw wraps the mutating ones.
func (h *OrdersHandler) Register(r chi.Router, mw ...func(http.Handler) http.Handler) {
	m := r.With(mw...)
	m.Post("/orders", h.placeOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	m.Post("/orders/{id}/confirm", h.confirm)
	m.Post("/orders/{id}/reject", h.reject)
	m.Post("/orders/{id}/cancel", h.cancel)
	m.Post("/orders/{id}/ship", h.ship)
	m.Post("/orders/{id}/deliver", h.deliver)
	m.Post("/orders/{id}/dispute", h.dispute)
	m.Post("/orders/{id}/resolve", h.resolve)
	r.Get("/products/{id}/stock", h.stock)
	m.Post("/admin/auto-confirm", h.autoConfirm)
}

func (h *OrdersHandler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 5 * time.Second
	}
	return h.Timeout
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.BuyerID == "" || req.ProductID == "" {
		badRequest(w, "missing fields")
		return
	}
	h.Idempotency.Do(w, r, "order", req.BuyerID, func(ctx context.Context) (int, any, error) {
		ctx, cancel := context.WithTimeout(ctx, h.timeout())
		defer cancel()
		o, err := h.Checkout.PlaceOrder(ctx, req.BuyerID, req.ProductID, req.Quantity, req.Delivery, req.PaymentMethod)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, o, nil
	})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.OrderFilter{BuyerID: q.Get("buyer_id"), ProducerID: q.Get("producer_id")}
	if s := q.Get("status"); s != "" {
		st, ok := orders.ParseStatus(s)
		if !ok {
			badRequest(w, "unknown status")
			return
		}
		f.Status = st
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			badRequest(w, "invalid limit")
			return
		}
		f.Limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	out, err := h.Lifecycle.ListOrders(ctx, f)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	o, err := h.Lifecycle.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// transition decodes the optional body and runs fn with a bounded context.
func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string, req TransitionReq) (*orders.Order, error)) {
	var req TransitionReq
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	o, err := fn(ctx, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, _ TransitionReq) (*orders.Order, error) {
		return h.Lifecycle.Confirm(ctx, id)
	})
}

func (h *OrdersHandler) reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req TransitionReq) (*orders.Order, error) {
		return h.Lifecycle.Reject(ctx, id, req.Reason)
	})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req TransitionReq) (*orders.Order, error) {
		return h.Lifecycle.Cancel(ctx, id, req.Reason)
	})
}

func (h *OrdersHandler) ship(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req TransitionReq) (*orders.Order, error) {
		return h.Lifecycle.Ship(ctx, id, req.TrackingNo)
	})
}

func (h *OrdersHandler) deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, _ TransitionReq) (*orders.Order, error) {
		return h.Lifecycle.ConfirmDelivery(ctx, id)
	})
}

func (h *OrdersHandler) dispute(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req TransitionReq) (*orders.Order, error) {
		return h.Lifecycle.RaiseDispute(ctx, id, req.Reason)
	})
}

func (h *OrdersHandler) resolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req TransitionReq) (*orders.Order, error) {
		res, err := lifecycle.ParseResolution(req.Resolution)
		if err != nil {
			return nil, err
		}
		return h.Resolver.ResolveDispute(ctx, id, res, req.Note)
	})
}

func (h *OrdersHandler) stock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	q, err := h.Ledger.Available(ctx, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResp{ProductID: id, Available: q})
}

// autoConfirm runs one sweeper pass on demand, for an external scheduler.
func (h *OrdersHandler) autoConfirm(w http.ResponseWriter, r *http.Request) {
	n, err := h.Sweeper.RunPass(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"promoted": n})
}
