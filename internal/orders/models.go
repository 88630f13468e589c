package orders

import (
	"github.com/shopspring/decimal"
	"time"
)

// QuantityScale is the number of fractional digits a quantity may carry.
// The quantity columns in schema.sql are NUMERIC(14, 3) to match.
const QuantityScale = 3

// CheckQuantity rejects quantities that are not positive or that the store
// would have to round.
func CheckQuantity(q decimal.Decimal) error {
	if !q.IsPositive() || !q.Equal(q.Truncate(QuantityScale)) {
		return ErrInvalidQuantity
	}
	return nil
}

type Product struct {
	ID                string          `json:"id"`
	ProducerID        string          `json:"producer_id"`
	Name              string          `json:"name"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
}

// ProductInfo is what the catalog hands out: identity and price, never stock.
type ProductInfo struct {
	ID         string          `json:"id"`
	ProducerID string          `json:"producer_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

type Delivery struct {
	Method  string `json:"method,omitempty"` // delivery | pickup
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type Order struct {
	ID            string          `json:"id"`
	CheckoutID    string          `json:"checkout_id,omitempty"`
	BuyerID       string          `json:"buyer_id"`
	ProducerID    string          `json:"producer_id"`
	ProductID     string          `json:"product_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Delivery      Delivery        `json:"delivery"`
	TrackingNo    string          `json:"tracking_no,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
	DisputeReason string          `json:"dispute_reason,omitempty"`
	ShippedAt     *time.Time      `json:"shipped_at,omitempty"`
	AutoConfirmAt *time.Time      `json:"auto_confirm_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type CartLine struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// NewPending builds a freshly reserved order. The unit price is snapshotted
// here and never changes afterwards.
func NewPending(id, buyerID string, p ProductInfo, qty decimal.Decimal, d Delivery, paymentMethod string, now time.Time) Order {
	return Order{
		ID:            id,
		BuyerID:       buyerID,
		ProducerID:    p.ProducerID,
		ProductID:     p.ID,
		Quantity:      qty,
		UnitPrice:     p.UnitPrice,
		TotalAmount:   p.UnitPrice.Mul(qty).Round(2),
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		PaymentMethod: paymentMethod,
		Delivery:      d,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

type OrderFilter struct {
	BuyerID    string
	ProducerID string
	Status     Status
	Limit      int
}
