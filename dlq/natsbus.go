package dlq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSEventBus publishes DLQ lifecycle events to NATS subjects
// "dlq.{queue}.{event}" with a message-id header.
type NATSEventBus struct {
	conn *nats.Conn
}

// NewNATSEventBus wraps an already-connected NATS connection.
func NewNATSEventBus(conn *nats.Conn) *NATSEventBus {
	return &NATSEventBus{conn: conn}
}

func (b *NATSEventBus) PublishDLQEvent(_ context.Context, queue, event string, msg *Message) error {
	if b.conn == nil {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dlq: marshal event payload: %w", err)
	}

	natsMsg := &nats.Msg{
		Subject: fmt.Sprintf("dlq.%s.%s", queue, event),
		Data:    data,
		Header:  nats.Header{},
	}
	natsMsg.Header.Set("message_id", msg.MessageID)

	return b.conn.PublishMsg(natsMsg)
}

var _ EventBus = (*NATSEventBus)(nil)
