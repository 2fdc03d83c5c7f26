package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReplica is the best-effort distributed copy of the in-process
// lock registry, keyed branch_lock:{id} with a TTL equal to the
// lock's remaining lifetime.
type RedisReplica struct {
	client *redis.Client
	prefix string
}

// NewRedisReplica wraps a redis client for use as a Replica.
func NewRedisReplica(client *redis.Client, prefix string) *RedisReplica {
	return &RedisReplica{client: client, prefix: prefix}
}

func (r *RedisReplica) key(id string) string { return fmt.Sprintf("%sbranch_lock:%s", r.prefix, id) }

func (r *RedisReplica) PutLock(ctx context.Context, l *BranchLock) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("lock: marshal replica entry: %w", err)
	}
	ttl := time.Until(l.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.client.Set(ctx, r.key(l.ID), data, ttl).Err()
}

func (r *RedisReplica) DeleteLock(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

var _ Replica = (*RedisReplica)(nil)
