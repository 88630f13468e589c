package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	kafkax "github.com/ariefcatur/go-farm-orders/internal/kafka"
	"github.com/ariefcatur/go-farm-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"net/http"
)

const inFlight = "pending"

type idemRecord struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency replays the first successful response for an Idempotency-Key
// header. Requests without the header run normally.
type Idempotency struct {
	Redis *redis.Client
	Log   *zap.Logger
}

// Do runs fn at most once per key within the idempotency TTL. Failed runs
// clear the key so that the client can retry.
func (i *Idempotency) Do(w http.ResponseWriter, r *http.Request, scope, buyerID string, fn func(ctx context.Context) (int, any, error)) {
	ctx := r.Context()
	header := r.Header.Get("Idempotency-Key")
	if header == "" || i == nil || i.Redis == nil {
		code, v, err := fn(ctx)
		if err != nil {
			writeError(w, i.logger(), err)
			return
		}
		writeJSON(w, code, v)
		return
	}

	key := fmt.Sprintf(redisx.KeyIdem, scope, buyerID, header)
	fresh, err := i.Redis.SetNX(ctx, key, inFlight, redisx.TTLIdempotency).Result()
	if err != nil {
		writeError(w, i.logger(), fmt.Errorf("idempotency: %w", err))
		return
	}
	if !fresh {
		i.replay(w, ctx, key)
		return
	}

	code, v, err := fn(ctx)
	if err != nil {
		_ = i.Redis.Del(context.WithoutCancel(ctx), key).Err()
		writeError(w, i.logger(), err)
		return
	}
	rec := kafkax.MustMarshal(idemRecord{Status: code, Body: kafkax.MustMarshal(v)})
	if err := i.Redis.Set(context.WithoutCancel(ctx), key, rec, redisx.TTLIdempotency).Err(); err != nil {
		i.logger().Warn("idempotency store", zap.String("key", key), zap.Error(err))
	}
	writeJSON(w, code, v)
}

func (i *Idempotency) replay(w http.ResponseWriter, ctx context.Context, key string) {
	raw, err := i.Redis.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "request expired, retry"})
		return
	case err != nil:
		writeError(w, i.logger(), fmt.Errorf("idempotency: %w", err))
		return
	}
	if string(raw) == inFlight {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "request with this idempotency key is in progress"})
		return
	}
	var rec idemRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		writeError(w, i.logger(), fmt.Errorf("idempotency record: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func (i *Idempotency) logger() *zap.Logger {
	if i == nil || i.Log == nil {
		return zap.NewNop()
	}
	return i.Log
}
