package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeIndex remembers billing event IDs that were fully applied, so that
// at-least-once webhook delivery can be replayed indefinitely without
// re-running transitions. The record's LastEventID catches the common
// immediate-redelivery case; the index covers replays of older events.
type DedupeIndex interface {
	// Seen reports whether the event ID was already applied.
	Seen(ctx context.Context, eventID string) (bool, error)

	// Mark records the event ID as applied.
	Mark(ctx context.Context, eventID string) error
}

// MemDedupeIndex is an in-memory DedupeIndex for tests and single-node
// deployments.
type MemDedupeIndex struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewMemDedupeIndex() *MemDedupeIndex {
	return &MemDedupeIndex{seen: make(map[string]struct{})}
}

func (d *MemDedupeIndex) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.seen[eventID]
	return ok, nil
}

func (d *MemDedupeIndex) Mark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = struct{}{}
	return nil
}

// RedisDedupeIndex is a DedupeIndex shared across nodes. Entries carry a TTL
// because providers stop redelivering after a bounded window; an unbounded
// set would grow forever.
type RedisDedupeIndex struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// DefaultDedupeTTL comfortably exceeds typical webhook retry schedules.
const DefaultDedupeTTL = 30 * 24 * time.Hour

func NewRedisDedupeIndex(client *redis.Client, prefix string, ttl time.Duration) *RedisDedupeIndex {
	if prefix == "" {
		prefix = "billing:event"
	}
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDedupeIndex{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDedupeIndex) key(eventID string) string {
	return d.prefix + ":" + eventID
}

func (d *RedisDedupeIndex) Seen(ctx context.Context, eventID string) (bool, error) {
	if _, err := d.client.Get(ctx, d.key(eventID)).Result(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("dedupe index lookup: %w", err)
	}
	return true, nil
}

func (d *RedisDedupeIndex) Mark(ctx context.Context, eventID string) error {
	if err := d.client.Set(ctx, d.key(eventID), "1", d.ttl).Err(); err != nil {
		return fmt.Errorf("dedupe index mark: %w", err)
	}
	return nil
}
