package redisx

import (
	"context"
	"github.com/redis/go-redis/v9"
	"time"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// releaseScript deletes the lease only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// extendScript resets the TTL only if we still own the lease.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Lease is a best-effort mutual exclusion lock held under a random token.
type Lease struct {
	Redis *redis.Client
	Key   string
	Token string
	TTL   time.Duration
}

func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	return l.Redis.SetNX(ctx, l.Key, l.Token, l.TTL).Result()
}

// Extend pushes the expiry out by TTL. It reports false once the lease has
// expired or been taken by someone else.
func (l *Lease) Extend(ctx context.Context) (bool, error) {
	n, err := extendScript.Run(ctx, l.Redis, []string{l.Key}, l.Token, l.TTL.Milliseconds()).Int64()
	return n == 1, err
}

func (l *Lease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.Redis, []string{l.Key}, l.Token).Err()
}
