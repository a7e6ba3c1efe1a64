package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cuworking/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix   = "cuworking:idempotency:"
	idempotencyClaimPrefix = "cuworking:idempotency-claim:"
)

// RedisIdempotencyStore shares cached responses and claims between API
// replicas. Redis errors degrade to a cache miss and a granted claim; the
// request then runs normally.
type RedisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		rdb: rdb,
		ttl: ttl,
		log: log,
	}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	raw, err := s.rdb.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("Idempotency lookup failed", "error", err)
		}
		return nil, false
	}

	var cached CachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.log.Warn("Discarding corrupt idempotency entry", "error", err)
		return nil, false
	}
	return &cached, true
}

func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string) bool {
	ok, err := s.rdb.SetNX(ctx, idempotencyClaimPrefix+key, 1, claimTTL).Result()
	if err != nil {
		s.log.Warn("Idempotency claim failed", "error", err)
		return true
	}
	return ok
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) {
	response.CreatedAt = time.Now()
	raw, err := json.Marshal(response)
	if err != nil {
		s.log.Error("Failed to encode idempotency entry", "error", err)
		s.Release(ctx, key)
		return
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, idempotencyKeyPrefix+key, raw, s.ttl)
		pipe.Del(ctx, idempotencyClaimPrefix+key)
		return nil
	})
	if err != nil {
		s.log.Warn("Failed to store idempotency entry", "error", err)
	}
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) {
	if err := s.rdb.Del(ctx, idempotencyClaimPrefix+key).Err(); err != nil {
		s.log.Warn("Failed to release idempotency claim", "error", err)
	}
}

// Stop is a no-op: the Redis client is owned and closed by pkg/client.
func (s *RedisIdempotencyStore) Stop() {}
