package redisx

import "time"

const (
	// Idempotency create order: idem:order:{owner_id}:{key} -> order_id
	KeyIdemOrderCreate = "idem:order:%s:%s"

	// Cache status order: hash order_status:{order_id} -> v, status, ownerId, updatedAt, deleted (v = updatedAt unix micro)
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
