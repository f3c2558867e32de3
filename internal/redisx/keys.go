package redisx

import "time"

const (
	// Create idempotency: idem:order:create:{idempotency_key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Read cache for a single order: order:{order_id} -> order snapshot JSON
	KeyOrder = "order:%s"

	// Consumer dedup: dedup:{consumer}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
