package orders

import (
	"encoding/json"
	"github.com/shopspring/decimal"
	"time"
)

const (
	EventOrderPlaced          = "order.placed"
	EventOrderConfirmed       = "order.confirmed"
	EventOrderRejected        = "order.rejected"
	EventOrderCancelled       = "order.cancelled"
	EventOrderShipped         = "order.shipped"
	EventOrderDelivered       = "order.delivered"
	EventOrderAutoConfirmed   = "order.auto_confirmed"
	EventOrderDisputed        = "order.disputed"
	EventOrderDisputeResolved = "order.dispute_resolved"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // emitting service, e.g. "market-api"
	RecipientID   string          `json:"recipient_id"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderEventPayload struct {
	OrderID     string          `json:"order_id"`
	BuyerID     string          `json:"buyer_id"`
	ProducerID  string          `json:"producer_id"`
	ProductID   string          `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      Status          `json:"status"`
	Note        string          `json:"note,omitempty"` // reason or tracking number
}

func PayloadFor(o *Order, note string) OrderEventPayload {
	return OrderEventPayload{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		ProducerID:  o.ProducerID,
		ProductID:   o.ProductID,
		Quantity:    o.Quantity,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		Note:        note,
	}
}

// EventFor maps a completed transition to its event type and recipients.
func EventFor(a Action, o *Order) (eventType string, recipients []string) {
	switch a {
	case ActionConfirm:
		return EventOrderConfirmed, []string{o.BuyerID}
	case ActionReject:
		return EventOrderRejected, []string{o.BuyerID}
	case ActionCancel:
		return EventOrderCancelled, []string{o.ProducerID}
	case ActionShip:
		return EventOrderShipped, []string{o.BuyerID}
	case ActionBuyerConfirm:
		return EventOrderDelivered, []string{o.ProducerID}
	case ActionAutoConfirm:
		return EventOrderAutoConfirmed, []string{o.BuyerID, o.ProducerID}
	case ActionDispute:
		return EventOrderDisputed, []string{o.ProducerID}
	case ActionResolveDelivered, ActionResolveRefunded:
		return EventOrderDisputeResolved, []string{o.BuyerID, o.ProducerID}
	}
	return "", nil
}
