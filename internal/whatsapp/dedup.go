package whatsapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers message ids. The Cloud API redelivers a webhook until
// it gets a 2xx, so the same message can arrive more than once.
type Deduper interface {
	// FirstSeen records id and reports whether it was new.
	FirstSeen(ctx context.Context, id string) (bool, error)
}

// ─── Redis ───────────────────────────────────────────────────────────────────

// RedisDeduper shares seen ids between replicas.
type RedisDeduper struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedisDeduper creates a RedisDeduper. Ids expire after ttl.
func NewRedisDeduper(rdb redis.UniversalClient, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, "recordpilot:wamid:"+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("whatsapp: dedup %s: %w", id, err)
	}
	return ok, nil
}

// ─── Memory ──────────────────────────────────────────────────────────────────

// MemoryDeduper keeps seen ids in process.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDeduper creates a MemoryDeduper. Ids expire after ttl.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) FirstSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	if _, dup := d.seen[id]; dup {
		return false, nil
	}
	d.seen[id] = now.Add(d.ttl)
	return true, nil
}
