package orders

import (
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrCheckoutFailed    = errors.New("checkout failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyCart         = errors.New("cart is empty")

	// ErrOrderChanged is returned by a guarded update that matched no row:
	// someone else moved the order first.
	ErrOrderChanged = errors.New("order changed concurrently")
)

type InsufficientStockError struct {
	ProductID string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %s, available %s",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type TransitionError struct {
	OrderID string
	From    Status
	Action  Action
	Reason  string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("order %s: cannot %s from %s", e.OrderID, e.Action, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// CheckoutError names the first cart line (0-based) that could not be
// reserved. Err carries the underlying cause.
type CheckoutError struct {
	Line      int
	ProductID string
	Err       error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed at line %d (product %s): %v", e.Line, e.ProductID, e.Err)
}

func (e *CheckoutError) Is(target error) bool { return target == ErrCheckoutFailed }

func (e *CheckoutError) Unwrap() error { return e.Err }
