package redisx

import "time"

const (
	// Idempotent create: idem:{scope}:{buyer_id}:{key} -> cached response
	KeyIdem = "idem:%s:%s:%s"

	// Buyer cart: hash cart:{buyer_id} product_id -> quantity
	KeyCart = "cart:%s"

	// Catalog cache: catalog:product:{product_id} -> ProductInfo JSON
	KeyProduct = "catalog:product:%s"

	// Notification inbox: list inbox:{recipient_id}, newest first
	KeyInbox = "inbox:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Single sweeper at a time across replicas
	KeySweeperLease = "lease:auto-confirm-sweeper"

	// GCRA rate limit per client; redis_rate stores it under rate:http:{client}
	KeyRateLimit = "http:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLCart        = 7 * 24 * time.Hour
	TTLInbox       = 30 * 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
