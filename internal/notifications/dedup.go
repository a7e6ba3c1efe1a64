package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "cuworking:notified:"

// Deduplicator remembers processed event ids. Kafka delivers at least once,
// so a redelivered event must not notify twice.
type Deduplicator interface {
	// FirstSeen marks id as processed and reports whether it was new.
	FirstSeen(ctx context.Context, id string) (bool, error)
	// Forget drops the mark so a failed event can be retried.
	Forget(ctx context.Context, id string) error
}

type RedisDeduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduplicator(rdb *redis.Client, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{rdb: rdb, ttl: ttl}
}

func (d *RedisDeduplicator) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, dedupKeyPrefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduplicator) Forget(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, dedupKeyPrefix+id).Err()
}

const memorySweepInterval = 10 * time.Minute

// MemoryDeduplicator keeps ids in process memory until they expire. Expired
// ids are dropped by a background sweep; call Stop to end it.
type MemoryDeduplicator struct {
	mu     sync.Mutex
	ttl    time.Duration
	seen   map[string]time.Time
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	d := &MemoryDeduplicator{
		ttl:    ttl,
		seen:   make(map[string]time.Time),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	go d.cleanup()

	return d
}

func (d *MemoryDeduplicator) FirstSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expires, ok := d.seen[id]; ok && !now.After(expires) {
		return false, nil
	}
	d.seen[id] = now.Add(d.ttl)
	return true, nil
}

func (d *MemoryDeduplicator) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

func (d *MemoryDeduplicator) Stop() {
	d.once.Do(func() { close(d.stopCh) })
}

func (d *MemoryDeduplicator) cleanup() {
	ticker := time.NewTicker(memorySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.sweep()
		case <-d.stopCh:
			return
		}
	}
}

func (d *MemoryDeduplicator) sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, expires := range d.seen {
		if now.After(expires) {
			delete(d.seen, id)
		}
	}
}
