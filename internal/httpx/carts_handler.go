package httpx

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-farm-orders/internal/cart"
	"github.com/ariefcatur/go-farm-orders/internal/checkout"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"io"
	"net/http"
	"time"
)

type CartItemReq struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	// Replace sets the quantity instead of adding to it.
	Replace bool `json:"replace,omitempty"`
}

type CartResp struct {
	BuyerID string            `json:"buyer_id"`
	Lines   []orders.CartLine `json:"lines"`
}

type CheckoutReq struct {
	Lines         []orders.CartLine `json:"lines,omitempty"`
	Delivery      orders.Delivery   `json:"delivery"`
	PaymentMethod string            `json:"payment_method"`
}

type CheckoutResp struct {
	CheckoutID string         `json:"checkout_id"`
	Orders     []orders.Order `json:"orders"`
}

type CartsHandler struct {
	Cart        *cart.Redis
	Checkout    *checkout.Coordinator
	Idempotency *Idempotency
	Log         *zap.Logger
}

func (h *CartsHandler) Register(r chi.Router, mw ...func(http.Handler) http.Handler) {
	m := r.With(mw...)
	r.Get("/carts/{buyerId}", h.get)
	m.Delete("/carts/{buyerId}", h.clear)
	m.Put("/carts/{buyerId}/items", h.putItem)
	m.Delete("/carts/{buyerId}/items/{productId}", h.removeItem)
	m.Post("/carts/{buyerId}/checkout", h.checkout)
}

func (h *CartsHandler) get(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerId")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	h.writeCart(w, ctx, buyerID)
}

func (h *CartsHandler) writeCart(w http.ResponseWriter, ctx context.Context, buyerID string) {
	lines, err := h.Cart.Lines(ctx, buyerID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, CartResp{BuyerID: buyerID, Lines: lines})
}

func (h *CartsHandler) putItem(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerId")
	var req CartItemReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.ProductID == "" {
		badRequest(w, "missing product_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	var err error
	if req.Replace {
		err = h.Cart.Set(ctx, buyerID, req.ProductID, req.Quantity)
	} else {
		err = h.Cart.Add(ctx, buyerID, req.ProductID, req.Quantity)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.writeCart(w, ctx, buyerID)
}

func (h *CartsHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerId")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Cart.Remove(ctx, buyerID, chi.URLParam(r, "productId")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.writeCart(w, ctx, buyerID)
}

func (h *CartsHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Cart.Clear(ctx, chi.URLParam(r, "buyerId")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkout uses the lines in the body, or the stored cart when there are none.
func (h *CartsHandler) checkout(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerId")
	var req CheckoutReq
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid json")
		return
	}
	h.Idempotency.Do(w, r, "checkout", buyerID, func(ctx context.Context) (int, any, error) {
		created, err := h.Checkout.Checkout(ctx, checkout.Request{
			BuyerID:       buyerID,
			Lines:         req.Lines,
			Delivery:      req.Delivery,
			PaymentMethod: req.PaymentMethod,
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, CheckoutResp{CheckoutID: created[0].CheckoutID, Orders: created}, nil
	})
}
