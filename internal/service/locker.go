package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker serializes processing of one reference id across engine
// instances with a SetNX lease.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, referenceID string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKey(referenceID), "1", ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, referenceID string) error {
	return l.client.Del(ctx, lockKey(referenceID)).Err()
}

func lockKey(referenceID string) string {
	return fmt.Sprintf("payment_lock:%s", referenceID)
}
