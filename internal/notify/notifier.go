package notify

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-farm-orders/internal/clock"
	"github.com/ariefcatur/go-farm-orders/internal/metrics"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Notifier is fire-and-forget: implementations swallow and log their own
// failures so that order processing never depends on delivery.
type Notifier interface {
	Notify(ctx context.Context, recipientID, eventType string, payload any)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

type Kafka struct {
	Publisher Publisher
	Service   string
	Clock     clock.Clock
	Log       *zap.Logger
}

func (k *Kafka) Notify(ctx context.Context, recipientID, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		k.drop(recipientID, eventType, err)
		return
	}
	ev := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   k.Clock.Now(),
		Producer:     k.Service,
		RecipientID:  recipientID,
		Payload:      body,
	}
	if p, ok := payload.(orders.OrderEventPayload); ok {
		ev.CorrelationID = p.OrderID
	}
	value, err := json.Marshal(ev)
	if err != nil {
		k.drop(recipientID, eventType, err)
		return
	}
	err = k.Publisher.Publish(orders.PartitionKey(recipientID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if err != nil {
		k.drop(recipientID, eventType, err)
	}
}

func (k *Kafka) drop(recipientID, eventType string, err error) {
	metrics.NotificationsDropped.Inc()
	k.Log.Warn("notification dropped",
		zap.String("recipient_id", recipientID), zap.String("event_type", eventType), zap.Error(err))
}

// Log only writes the notification to the logger. Used when no broker is
// configured.
type Log struct{ Log *zap.Logger }

func (l Log) Notify(ctx context.Context, recipientID, eventType string, payload any) {
	l.Log.Info("notification", zap.String("recipient_id", recipientID), zap.String("event_type", eventType), zap.Any("payload", payload))
}

// OrderEvent emits the event for a completed transition to every recipient
// it concerns.
func OrderEvent(ctx context.Context, n Notifier, a orders.Action, o *orders.Order, note string) {
	eventType, recipients := orders.EventFor(a, o)
	if eventType == "" {
		return
	}
	payload := orders.PayloadFor(o, note)
	for _, r := range recipients {
		n.Notify(ctx, r, eventType, payload)
	}
}
