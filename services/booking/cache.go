package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bookingRepo "moveflow/database/repository/booking"

	"github.com/go-redis/redis/v8"
)

// AvailabilityCache memoizes availability answers. Key must be taken before
// the store is read; a key taken before an Invalidate never matches one taken after.
type AvailabilityCache interface {
	Key(ctx context.Context, q AvailabilityQuery) (string, error)
	Get(ctx context.Context, key string) (*AvailabilityResult, bool, error)
	Set(ctx context.Context, key string, res *AvailabilityResult) error
	Invalidate(ctx context.Context, kind bookingRepo.ResourceKind, id string) error
}

// RedisAvailabilityCache versions entries per resource. Invalidate bumps the
// version, which orphans every key built from the old one until its TTL runs out.
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisAvailabilityCache{client: client, ttl: ttl, prefix: "availability"}
}

func (c *RedisAvailabilityCache) versionKey(kind bookingRepo.ResourceKind, id string) string {
	return fmt.Sprintf("%s:version:%s:%s", c.prefix, kind, id)
}

func (c *RedisAvailabilityCache) Key(ctx context.Context, q AvailabilityQuery) (string, error) {
	version, err := c.client.Get(ctx, c.versionKey(q.Kind, q.ResourceID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read availability version: %w", err)
	}
	return fmt.Sprintf("%s:%s:%s:v%d:%d:%d:%d", c.prefix, q.Kind, q.ResourceID, version,
		q.Start.Unix(), q.End.Unix(), int64(q.Duration/time.Second)), nil
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, key string) (*AvailabilityResult, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read availability cache: %w", err)
	}
	var res AvailabilityResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, fmt.Errorf("corrupt availability cache entry %s: %w", key, err)
	}
	return &res, true, nil
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, key string, res *AvailabilityResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write availability cache: %w", err)
	}
	return nil
}

func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, kind bookingRepo.ResourceKind, id string) error {
	if err := c.client.Incr(ctx, c.versionKey(kind, id)).Err(); err != nil {
		return fmt.Errorf("failed to bump availability version: %w", err)
	}
	return nil
}
