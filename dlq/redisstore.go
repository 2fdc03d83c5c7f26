package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the distributed Store implementation: dlq:{q}:{id}
// keys (SET ... EX) plus a dlq:index:{q} sorted set scored by
// next_retry_time epoch seconds, with a poison:{q}:{id} /
// poison:index:{q} pair carrying no expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Client *redis.Client
	// Prefix namespaces keys, matching the DLQ.redis_key_prefix config
	// option. Default: "".
	Prefix string
	// TTL applied to live (non-poison) message keys. Default: 7 days.
	TTL time.Duration
}

// NewRedisStore creates a RedisStore with defaults applied.
func NewRedisStore(cfg RedisStoreConfig) *RedisStore {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &RedisStore{client: cfg.Client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStore) liveKey(queue, id string) string {
	return fmt.Sprintf("%sdlq:%s:%s", s.prefix, queue, id)
}
func (s *RedisStore) liveIndex(queue string) string {
	return fmt.Sprintf("%sdlq:index:%s", s.prefix, queue)
}
func (s *RedisStore) poisonKey(queue, id string) string {
	return fmt.Sprintf("%spoison:%s:%s", s.prefix, queue, id)
}
func (s *RedisStore) poisonIndex(queue string) string {
	return fmt.Sprintf("%spoison:index:%s", s.prefix, queue)
}

func (s *RedisStore) Put(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dlq: marshal message: %w", err)
	}

	score := float64(time.Now().Unix())
	if msg.NextRetryTime != nil {
		score = float64(msg.NextRetryTime.Unix())
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.liveKey(msg.QueueName, msg.MessageID), data, s.ttl)
	pipe.ZAdd(ctx, s.liveIndex(msg.QueueName), redis.Z{Score: score, Member: msg.MessageID})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, queue, id string) (*Message, bool, error) {
	data, err := s.client.Get(ctx, s.liveKey(queue, id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, fmt.Errorf("dlq: unmarshal message: %w", err)
	}
	return &msg, true, nil
}

func (s *RedisStore) ListReady(ctx context.Context, queue string, now time.Time) ([]*Message, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.liveIndex(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Message, 0, len(ids))
	for _, id := range ids {
		msg, ok, err := s.Get(ctx, queue, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, queue, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.liveKey(queue, id))
	pipe.ZRem(ctx, s.liveIndex(queue), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) PromotePoison(ctx context.Context, msg *Message) error {
	cp := *msg
	cp.Status = StatusPoison
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("dlq: marshal poison message: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.liveKey(msg.QueueName, msg.MessageID))
	pipe.ZRem(ctx, s.liveIndex(msg.QueueName), msg.MessageID)
	pipe.Set(ctx, s.poisonKey(msg.QueueName, msg.MessageID), data, 0) // no TTL
	pipe.ZAdd(ctx, s.poisonIndex(msg.QueueName), redis.Z{
		Score: float64(time.Now().Unix()), Member: msg.MessageID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListPoison(ctx context.Context, queue string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = -1
	}
	ids, err := s.client.ZRevRange(ctx, s.poisonIndex(queue), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Message, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, s.poisonKey(queue, id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("dlq: unmarshal poison message: %w", err)
		}
		out = append(out, &msg)
	}
	return out, nil
}

func (s *RedisStore) Stats(ctx context.Context, queue string) (Stats, error) {
	live, err := s.client.ZCard(ctx, s.liveIndex(queue)).Result()
	if err != nil {
		return Stats{}, err
	}
	poison, err := s.client.ZCard(ctx, s.poisonIndex(queue)).Result()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Queue: queue, LiveCount: int(live), PoisonCount: int(poison)}, nil
}

var _ Store = (*RedisStore)(nil)
