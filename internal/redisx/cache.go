package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StatusEntry is the cached view of an order's status.
type StatusEntry struct {
	Status    string    `json:"status"`
	OwnerID   string    `json:"ownerId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OrderCache is the Redis side of the order pipeline: idempotency fast path,
// status cache and consumer dedup. Postgres stays the source of truth; every
// entry here may be missing or evicted at any time.
type OrderCache struct {
	rdb *redis.Client
	now func() time.Time
}

func NewOrderCache(rdb *redis.Client) *OrderCache {
	return &OrderCache{rdb: rdb, now: time.Now}
}

func (c *OrderCache) RememberIdempotency(ctx context.Context, owner uuid.UUID, key string, orderID uuid.UUID) error {
	k := fmt.Sprintf(KeyIdemOrderCreate, owner, key)
	if err := c.rdb.Set(ctx, k, orderID.String(), TTLIdempotency).Err(); err != nil {
		return fmt.Errorf("redis: remember idempotency: %w", err)
	}
	return nil
}

func (c *OrderCache) LookupIdempotency(ctx context.Context, owner uuid.UUID, key string) (uuid.UUID, bool, error) {
	v, err := c.rdb.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, owner, key)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis: lookup idempotency: %w", err)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis: corrupt idempotency entry: %w", err)
	}
	return id, true, nil
}

// setStatusScript writes an entry unless the stored one is newer. A
// tombstone left by EvictStatus counts as stored, so a late event cannot
// bring a deleted order back.
var setStatusScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'status', ARGV[2], 'ownerId', ARGV[3], 'updatedAt', ARGV[4], 'deleted', ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[6])
return 1
`)

// SetStatus caches e unless a newer entry (by UpdatedAt) is already there.
func (c *OrderCache) SetStatus(ctx context.Context, orderID uuid.UUID, e StatusEntry) error {
	_, err := c.writeStatus(ctx, orderID, e, false)
	return err
}

func (c *OrderCache) writeStatus(ctx context.Context, orderID uuid.UUID, e StatusEntry, tombstone bool) (bool, error) {
	deleted := "0"
	if tombstone {
		deleted = "1"
	}
	n, err := setStatusScript.Run(ctx, c.rdb, []string{fmt.Sprintf(KeyOrderStatus, orderID)},
		e.UpdatedAt.UnixMicro(),
		e.Status,
		e.OwnerID,
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		deleted,
		TTLStatusCache.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: set status: %w", err)
	}
	return n == 1, nil
}

func (c *OrderCache) GetStatus(ctx context.Context, orderID uuid.UUID) (StatusEntry, bool, error) {
	h, err := c.rdb.HGetAll(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil {
		return StatusEntry{}, false, fmt.Errorf("redis: get status: %w", err)
	}
	if len(h) == 0 || h["deleted"] == "1" {
		return StatusEntry{}, false, nil
	}
	at, err := time.Parse(time.RFC3339Nano, h["updatedAt"])
	if err != nil {
		return StatusEntry{}, false, fmt.Errorf("redis: decode status: %w", err)
	}
	return StatusEntry{Status: h["status"], OwnerID: h["ownerId"], UpdatedAt: at}, true, nil
}

// EvictStatus replaces the entry with a tombstone stamped now; writes older
// than the eviction are ignored until it expires.
func (c *OrderCache) EvictStatus(ctx context.Context, orderID uuid.UUID) error {
	if _, err := c.writeStatus(ctx, orderID, StatusEntry{UpdatedAt: c.now()}, true); err != nil {
		return fmt.Errorf("redis: evict status: %w", err)
	}
	return nil
}

// MarkProcessed records eventID for service and reports whether this is the
// first time it was seen.
func (c *OrderCache) MarkProcessed(ctx context.Context, service, eventID string) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
	if err != nil {
		return false, fmt.Errorf("redis: dedup: %w", err)
	}
	return ok, nil
}

// ForgetProcessed undoes MarkProcessed so a failed event can be retried.
func (c *OrderCache) ForgetProcessed(ctx context.Context, service, eventID string) error {
	if err := c.rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err(); err != nil {
		return fmt.Errorf("redis: forget dedup: %w", err)
	}
	return nil
}
