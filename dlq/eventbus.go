package dlq

import "context"

// EventBus publishes DLQ lifecycle events. Topic naming is
// dlq.{queue}.{event} where event is one of message_added, retry_success,
// poison. Headers carry message_id alongside whatever the backend needs.
type EventBus interface {
	PublishDLQEvent(ctx context.Context, queue, event string, msg *Message) error
}

// NoopEventBus discards all events. Used when no bus is configured;
// DLQ operations remain correct, just unobserved externally.
type NoopEventBus struct{}

func (NoopEventBus) PublishDLQEvent(context.Context, string, string, *Message) error { return nil }

var _ EventBus = NoopEventBus{}
