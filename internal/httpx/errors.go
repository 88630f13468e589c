package httpx

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"go.uber.org/zap"
	"net/http"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrInvalidInput),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrCheckoutFailed):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError maps engine errors to a status and a JSON body. Checkout
// failures also name the failing line.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := statusFor(err)
	body := map[string]any{"error": err.Error()}
	if code == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		body["error"] = "internal error"
	}

	var ce *orders.CheckoutError
	if errors.As(err, &ce) {
		body["failed_line"] = ce.Line
		body["product_id"] = ce.ProductID
	}
	var ise *orders.InsufficientStockError
	if errors.As(err, &ise) {
		body["product_id"] = ise.ProductID
		body["requested"] = ise.Requested
		body["available"] = ise.Available
	}
	var te *orders.TransitionError
	if errors.As(err, &te) {
		body["status"] = te.From
		body["action"] = te.Action
	}
	writeJSON(w, code, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
