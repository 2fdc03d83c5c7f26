package dlq

import (
	"context"
	"time"
)

// Stats summarizes a queue's store-level counters.
type Stats struct {
	Queue       string
	LiveCount   int
	PoisonCount int
}

// Store is the durable persistence contract for DLQ messages: a
// per-queue key/value table keyed by message id, a sorted index keyed
// by next_retry_time for efficient "ready" scans, and a poison queue
// with no TTL.
type Store interface {
	// Put upserts a message into the live index for its queue.
	Put(ctx context.Context, msg *Message) error

	// Get retrieves a message by queue and id. ok is false on miss.
	Get(ctx context.Context, queue, id string) (*Message, bool, error)

	// ListReady returns live messages whose NextRetryTime is <= now.
	ListReady(ctx context.Context, queue string, now time.Time) ([]*Message, error)

	// Delete removes a message from the live index. Idempotent.
	Delete(ctx context.Context, queue, id string) error

	// PromotePoison moves a message out of the live index and into the
	// poison queue, where it is retained with no TTL.
	PromotePoison(ctx context.Context, msg *Message) error

	// ListPoison returns poison messages for a queue, most recent first.
	ListPoison(ctx context.Context, queue string, limit int) ([]*Message, error)

	// Stats reports live/poison counts for a queue.
	Stats(ctx context.Context, queue string) (Stats, error)
}
