package dlq

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestHandler() *Handler {
	return NewHandler(HandlerConfig{Store: NewMemoryStore(), DefaultMaxRetries: 2})
}

func TestHandler_SendToDLQ_Persists(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	id, err := h.SendToDLQ(ctx, "webhooks", map[string]any{"foo": "bar"}, ReasonWebhookFailed, "boom", 0, nil)
	if err != nil {
		t.Fatalf("SendToDLQ: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty message id")
	}

	msg, ok, err := h.store.Get(ctx, "webhooks", id)
	if err != nil || !ok {
		t.Fatalf("expected message present, err=%v ok=%v", err, ok)
	}
	if msg.Status != StatusPending {
		t.Fatalf("expected pending status, got %v", msg.Status)
	}
	if msg.NextRetryTime == nil {
		t.Fatal("expected next retry time to be set")
	}
}

func TestHandler_Retry_SucceedsAndRemovesMessage(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	calls := 0
	h.RegisterQueue("webhooks", QueueConfig{
		MaxRetries:   2,
		PollInterval: time.Millisecond,
		Handler: func(ctx context.Context, payload map[string]any) error {
			calls++
			return nil
		},
	})

	id, err := h.SendToDLQ(ctx, "webhooks", map[string]any{"foo": "bar"}, ReasonWebhookFailed, "boom", 0, nil)
	if err != nil {
		t.Fatalf("SendToDLQ: %v", err)
	}

	if err := h.Retry(ctx, "webhooks", id); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls == 0 {
		t.Fatal("expected handler to be invoked")
	}

	_, ok, err := h.store.Get(ctx, "webhooks", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected message to be removed from live index after success")
	}
}

func TestHandler_Retry_PromotesToPoisonAfterMaxRetries(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	var poisoned *Message
	h.RegisterQueue("always-fails", QueueConfig{
		MaxRetries:   1,
		PollInterval: time.Millisecond,
		Handler: func(ctx context.Context, payload map[string]any) error {
			return errors.New("permanent failure")
		},
		OnFailure: func(m *Message) { poisoned = m },
	})

	id, err := h.SendToDLQ(ctx, "always-fails", map[string]any{"x": 1}, ReasonExecutionFailed, "boom", 0, nil)
	if err != nil {
		t.Fatalf("SendToDLQ: %v", err)
	}

	if err := h.Retry(ctx, "always-fails", id); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	_, ok, err := h.store.Get(ctx, "always-fails", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected message removed from live index once poisoned")
	}

	poison, err := h.store.ListPoison(ctx, "always-fails", 10)
	if err != nil {
		t.Fatalf("ListPoison: %v", err)
	}
	if len(poison) != 1 || poison[0].MessageID != id {
		t.Fatalf("expected message %s in poison queue, got %+v", id, poison)
	}
	if poisoned == nil || poisoned.MessageID != id {
		t.Fatal("expected OnFailure callback to fire with the poisoned message")
	}
}

func TestHandler_Retry_UnregisteredQueue(t *testing.T) {
	h := newTestHandler()
	if err := h.Retry(context.Background(), "missing", "some-id"); !errors.Is(err, ErrQueueNotRegistered) {
		t.Fatalf("expected ErrQueueNotRegistered, got %v", err)
	}
}

func TestHandler_Retry_MissingMessage(t *testing.T) {
	h := newTestHandler()
	h.RegisterQueue("q", QueueConfig{Handler: func(context.Context, map[string]any) error { return nil }})
	if err := h.Retry(context.Background(), "q", "nope"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestHandler_Replay_ResetsCounters(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	id, err := h.SendToDLQ(ctx, "q", map[string]any{}, ReasonUnknown, "boom", 2, nil)
	if err != nil {
		t.Fatalf("SendToDLQ: %v", err)
	}
	msg, _, _ := h.store.Get(ctx, "q", id)
	msg.RetryCount = 2
	_ = h.store.Put(ctx, msg)

	n, err := h.Replay(ctx, "q", "", 0)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 message replayed, got %d", n)
	}

	replayed, ok, err := h.store.Get(ctx, "q", id)
	if err != nil || !ok {
		t.Fatalf("expected replayed message present: err=%v ok=%v", err, ok)
	}
	if replayed.RetryCount != 0 || replayed.Status != StatusPending {
		t.Fatalf("expected reset counters, got %+v", replayed)
	}
}

func TestHandler_Purge_RemovesMatching(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	id, err := h.SendToDLQ(ctx, "q", map[string]any{}, ReasonUnknown, "boom", 0, nil)
	if err != nil {
		t.Fatalf("SendToDLQ: %v", err)
	}

	n, err := h.Purge(ctx, "q", "", nil)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}

	_, ok, _ := h.store.Get(ctx, "q", id)
	if ok {
		t.Fatal("expected message purged")
	}
}

func TestHandler_ConcurrentRetry_SerializedPerMessage(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	h.RegisterQueue("q", QueueConfig{
		MaxRetries: 2,
		Handler: func(ctx context.Context, payload map[string]any) error {
			time.Sleep(5 * time.Millisecond)
			return nil
		},
	})

	id, err := h.SendToDLQ(ctx, "q", map[string]any{}, ReasonUnknown, "boom", 0, nil)
	if err != nil {
		t.Fatalf("SendToDLQ: %v", err)
	}

	errs := make(chan error, 2)
	go func() { errs <- h.Retry(ctx, "q", id) }()
	go func() { errs <- h.Retry(ctx, "q", id) }()

	first, second := <-errs, <-errs
	var sawBusy bool
	for _, e := range []error{first, second} {
		if errors.Is(e, ErrAlreadyProcessing) {
			sawBusy = true
		}
	}
	if !sawBusy {
		t.Fatal("expected one of the concurrent retries to observe ErrAlreadyProcessing")
	}
}
