package notify

import (
	"context"
	"encoding/json"
	"fmt"
	kafkax "github.com/ariefcatur/go-farm-orders/internal/kafka"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/ariefcatur/go-farm-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Inbox is the delivery side: it stores notification envelopes in a capped
// per-recipient Redis list.
type Inbox struct {
	Redis   *redis.Client
	Size    int64
	Service string
	Log     *zap.Logger
}

// HandleMessage is installed as the consumer handler.
func (i *Inbox) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.RecipientID == "" {
		// poison message; committing it is the only way forward
		i.Log.Warn("skip undecodable notification", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, i.Service, env.EventID)
	fresh, err := i.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result()
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}

	key := fmt.Sprintf(redisx.KeyInbox, env.RecipientID)
	_, err = i.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, m.Value)
		p.LTrim(ctx, key, 0, i.size()-1)
		p.Expire(ctx, key, redisx.TTLInbox)
		return nil
	})
	if err != nil {
		_ = i.Redis.Del(ctx, dkey).Err()
		return err
	}

	fields := []zap.Field{
		zap.String("recipient_id", env.RecipientID),
		zap.String("event_type", kafkax.Header(m, "x-event-type")),
	}
	if p, err := kafkax.UnwrapPayload[orders.OrderEventPayload](env.Payload); err == nil {
		fields = append(fields, zap.String("order_id", p.OrderID))
	}
	i.Log.Debug("notification delivered", fields...)
	return nil
}

// List returns up to n envelopes for recipientID, newest first.
func (i *Inbox) List(ctx context.Context, recipientID string, n int64) ([]orders.Envelope, error) {
	if n <= 0 || n > i.size() {
		n = i.size()
	}
	raw, err := i.Redis.LRange(ctx, fmt.Sprintf(redisx.KeyInbox, recipientID), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]orders.Envelope, 0, len(raw))
	for _, s := range raw {
		var env orders.Envelope
		if err := json.Unmarshal([]byte(s), &env); err != nil {
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

func (i *Inbox) size() int64 {
	if i.Size <= 0 {
		return 100
	}
	return i.Size
}
