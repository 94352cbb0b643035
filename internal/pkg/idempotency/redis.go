package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Guard = (*redisGuard)(nil)

type redisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard returns a Guard backed by Redis. Entries expire after ttl;
// see the package comment for why expiry is tolerable.
func NewRedisGuard(addr string, ttl time.Duration) Guard {
	return &redisGuard{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (g *redisGuard) HasProcessed(ctx context.Context, key string) (bool, error) {
	_, err := g.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *redisGuard) MarkProcessed(ctx context.Context, key, metadata string) error {
	return g.client.Set(ctx, key, metadata, g.ttl).Err()
}
