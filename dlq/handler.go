package dlq

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/toolops-ontology/observe"
	"github.com/jonwraymond/toolops-ontology/resilience"
)

// MessageHandler processes one DLQ message and returns an error if the
// underlying operation should still be considered failed. Handlers are
// registered per queue name.
type MessageHandler func(ctx context.Context, original map[string]any) error

// TransformFunc optionally rewrites a message's original payload before
// it is handed to the registered handler, e.g. to decompress or
// upgrade an older wire format.
type TransformFunc func(original map[string]any) map[string]any

// Callback is invoked after a retry attempt resolves.
type Callback func(msg *Message)

// QueueConfig configures retry/poison behavior for one registered queue.
type QueueConfig struct {
	// MaxRetries is the max attempts before a message is promoted to
	// the poison queue. Default: the Handler's DefaultMaxRetries.
	MaxRetries int

	// BatchSize bounds how many ready messages the background
	// processor dispatches concurrently per poll. Default: 10.
	BatchSize int

	// PollInterval is how often the processor scans ListReady.
	// Default: 5s.
	PollInterval time.Duration

	// Transform optionally rewrites the stored payload before it
	// reaches Handler.
	Transform TransformFunc

	// Handler processes the message payload. Required to register a
	// queue with the background processor or Retry.
	Handler MessageHandler

	// OnSuccess is called after a message is successfully retried and
	// removed from the live index.
	OnSuccess Callback

	// OnFailure is called when a message is promoted to the poison
	// queue.
	OnFailure Callback
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Store    Store
	Bus      EventBus // optional; best-effort DLQ lifecycle events
	Logger   observe.Logger
	Observer observe.Observer // optional; used for metrics

	// DefaultMaxRetries applies when a queue is sent a message before
	// being registered with RegisterQueue. Default: 3.
	DefaultMaxRetries int

	// DispatchRate caps background retry dispatches per second across
	// all queues, so a backlog drain cannot become its own retry
	// storm. 0 disables the cap.
	DispatchRate float64
}

// Handler implements send-to-dlq, retry, the background processor,
// replay, and purge. It consumes the resilience package's
// RetryExecutor rather than reimplementing backoff/circuit logic.
type Handler struct {
	store   Store
	bus     EventBus
	logger  observe.Logger
	metrics observe.Metrics
	limiter *resilience.RateLimiter

	defaultMaxRetries int

	mu       sync.RWMutex
	queues   map[string]QueueConfig
	inflight map[string]struct{} // "queue/id" keys, guards concurrent retries

	inflightMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewHandler creates a Handler with defaults applied.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewLogger("info")
	}
	if cfg.DefaultMaxRetries <= 0 {
		cfg.DefaultMaxRetries = 3
	}
	metrics := observe.NopMetrics()
	if cfg.Observer != nil {
		if m, err := observe.NewMetrics(cfg.Observer.Meter()); err == nil {
			metrics = m
		}
	}
	var limiter *resilience.RateLimiter
	if cfg.DispatchRate > 0 {
		limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate: cfg.DispatchRate, Burst: 1, WaitOnLimit: true, MaxWait: time.Minute,
		})
	}
	return &Handler{
		store:             cfg.Store,
		bus:               cfg.Bus,
		logger:            cfg.Logger,
		metrics:           metrics,
		limiter:           limiter,
		defaultMaxRetries: cfg.DefaultMaxRetries,
		queues:            make(map[string]QueueConfig),
		inflight:          make(map[string]struct{}),
		stopCh:            make(chan struct{}),
	}
}

// RegisterQueue attaches a handler and policy to a queue name. Safe to
// call concurrently with Run/SendToDLQ (append-only map update under lock).
func (h *Handler) RegisterQueue(queue string, cfg QueueConfig) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = h.defaultMaxRetries
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	h.mu.Lock()
	h.queues[queue] = cfg
	h.mu.Unlock()
}

func (h *Handler) queueConfig(queue string) (QueueConfig, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cfg, ok := h.queues[queue]
	return cfg, ok
}

// SendToDLQ builds a DLQMessage, computes its next retry time from the
// reason->policy map, persists it, and emits a best-effort
// dlq.{queue}.message_added event.
func (h *Handler) SendToDLQ(ctx context.Context, queue string, original map[string]any, reason Reason, errText string, retryCount int, metadata map[string]any) (string, error) {
	maxRetries := h.defaultMaxRetries
	if cfg, ok := h.queueConfig(queue); ok {
		maxRetries = cfg.MaxRetries
	}

	msg := NewMessage(queue, original, reason, errText, maxRetries)
	msg.RetryCount = retryCount
	msg.Metadata = metadata

	policy := resilience.Policies[policyFor(reason)]
	delay := policy.Backoff.Delay(retryCount + 1)
	next := time.Now().UTC().Add(delay)
	msg.NextRetryTime = &next

	if err := h.store.Put(ctx, msg); err != nil {
		return "", err
	}

	h.logger.Warn(ctx, "message sent to dlq",
		observe.Field{Key: "queue", Value: queue},
		observe.Field{Key: "message_id", Value: msg.MessageID},
		observe.Field{Key: "reason", Value: string(reason)},
	)

	h.publishEvent(ctx, queue, "message_added", msg)
	h.metrics.RecordOperation(ctx, observe.OpMeta{Component: "dlq", Op: "send", Queue: queue}, 0, nil)
	return msg.MessageID, nil
}

// Retry loads the message, resolves its registered handler, and runs
// it through a resilience RetryExecutor allowing MaxRetries-RetryCount
// attempts (at least one); every attempt made is added to RetryCount.
// On success the message leaves the live index; on failure it is either
// rescheduled (RETRYING) or promoted to poison once max_retries is hit.
func (h *Handler) Retry(ctx context.Context, queue, id string) error {
	lockKey := queue + "/" + id
	if !h.claim(lockKey) {
		return ErrAlreadyProcessing
	}
	defer h.release(lockKey)

	cfg, ok := h.queueConfig(queue)
	if !ok || cfg.Handler == nil {
		return ErrQueueNotRegistered
	}

	msg, found, err := h.store.Get(ctx, queue, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrMessageNotFound
	}
	if !msg.ShouldRetry() {
		return nil
	}

	payload := msg.OriginalMessage
	if cfg.Transform != nil {
		payload = cfg.Transform(payload)
	}

	msg.Status = StatusProcessing
	_ = h.store.Put(ctx, msg)

	remaining := msg.MaxRetries - msg.RetryCount
	if remaining < 1 {
		remaining = 1
	}
	policyName := policyFor(msg.Reason)
	base := resilience.Policies[policyName]
	executor := resilience.NewRetryExecutor(resilience.RetryExecutorConfig{
		MaxAttempts: remaining,
		Backoff:     base.Backoff,
	})

	start := time.Now()
	result := executor.Execute(ctx, func(ctx context.Context) error {
		return cfg.Handler(ctx, payload)
	})
	h.metrics.RecordOperation(ctx, observe.OpMeta{Component: "dlq", Op: "retry", Queue: queue}, time.Since(start), result.LastErr)

	msg.RetryCount += result.Attempts

	if result.Success {
		if err := h.store.Delete(ctx, queue, id); err != nil {
			return err
		}
		msg.Status = StatusSucceeded
		h.logger.Info(ctx, "dlq retry succeeded",
			observe.Field{Key: "queue", Value: queue},
			observe.Field{Key: "message_id", Value: id},
		)
		h.publishEvent(ctx, queue, "retry_success", msg)
		if cfg.OnSuccess != nil {
			cfg.OnSuccess(msg)
		}
		return nil
	}

	if result.LastErr != nil {
		msg.AddError(result.LastErr.Error(), nil)
	}

	if msg.RetryCount >= msg.MaxRetries {
		if err := h.store.PromotePoison(ctx, msg); err != nil {
			return err
		}
		msg.Status = StatusPoison
		h.logger.Error(ctx, "dlq message promoted to poison",
			observe.Field{Key: "queue", Value: queue},
			observe.Field{Key: "message_id", Value: id},
		)
		h.publishEvent(ctx, queue, "poison", msg)
		if cfg.OnFailure != nil {
			cfg.OnFailure(msg)
		}
		return nil
	}

	delay := base.Backoff.Delay(msg.RetryCount + 1)
	next := time.Now().UTC().Add(delay)
	msg.NextRetryTime = &next
	msg.Status = StatusRetrying
	return h.store.Put(ctx, msg)
}

// Replay resets selected messages back to PENDING with zeroed counters
// and an immediate retry time. status, if non-empty, filters which
// messages are eligible.
func (h *Handler) Replay(ctx context.Context, queue string, status Status, limit int) (int, error) {
	now := time.Now().UTC()
	ready, err := h.store.ListReady(ctx, queue, now.Add(365*24*time.Hour))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, msg := range ready {
		if status != "" && msg.Status != status {
			continue
		}
		msg.Status = StatusPending
		msg.RetryCount = 0
		msg.ErrorHistory = nil
		msg.NextRetryTime = &now
		if err := h.store.Put(ctx, msg); err != nil {
			return count, err
		}
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	return count, nil
}

// Purge removes messages matching status (optional) and older than a
// cutoff (optional) from the live index.
func (h *Handler) Purge(ctx context.Context, queue string, status Status, olderThan *time.Time) (int, error) {
	all, err := h.store.ListReady(ctx, queue, time.Now().UTC().Add(365*24*time.Hour))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, msg := range all {
		if status != "" && msg.Status != status {
			continue
		}
		if olderThan != nil && msg.LastFailureTime.After(*olderThan) {
			continue
		}
		if err := h.store.Delete(ctx, queue, msg.MessageID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Run starts the background processor: one loop per registered queue,
// polling ListReady at the queue's PollInterval and dispatching
// retries concurrently, bounded by BatchSize. Run returns immediately;
// call Shutdown to stop the loops.
func (h *Handler) Run(ctx context.Context) {
	h.mu.RLock()
	queues := make([]string, 0, len(h.queues))
	for q := range h.queues {
		queues = append(queues, q)
	}
	h.mu.RUnlock()

	for _, q := range queues {
		h.wg.Add(1)
		go h.processQueue(ctx, q)
	}
}

func (h *Handler) processQueue(ctx context.Context, queue string) {
	defer h.wg.Done()

	cfg, ok := h.queueConfig(queue)
	if !ok {
		return
	}
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.pollOnce(ctx, queue, cfg.BatchSize)
		}
	}
}

func (h *Handler) pollOnce(ctx context.Context, queue string, batchSize int) {
	ready, err := h.store.ListReady(ctx, queue, time.Now().UTC())
	if err != nil {
		h.logger.Error(ctx, "dlq list ready failed", observe.Field{Key: "queue", Value: queue}, observe.Field{Key: "error", Value: err.Error()})
		return
	}
	if len(ready) > batchSize {
		ready = ready[:batchSize]
	}

	sem := make(chan struct{}, batchSize)
	var wg sync.WaitGroup
	for _, msg := range ready {
		msg := msg
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				break
			}
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := h.Retry(ctx, queue, msg.MessageID); err != nil && err != ErrAlreadyProcessing {
				h.logger.Error(ctx, "dlq retry dispatch failed",
					observe.Field{Key: "queue", Value: queue},
					observe.Field{Key: "message_id", Value: msg.MessageID},
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
		}()
	}
	wg.Wait()
}

// Shutdown stops the background processor loops, waiting for in-flight
// retries to finish.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stopCh) })
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) claim(key string) bool {
	h.inflightMu.Lock()
	defer h.inflightMu.Unlock()
	if _, busy := h.inflight[key]; busy {
		return false
	}
	h.inflight[key] = struct{}{}
	return true
}

func (h *Handler) release(key string) {
	h.inflightMu.Lock()
	defer h.inflightMu.Unlock()
	delete(h.inflight, key)
}

func (h *Handler) publishEvent(ctx context.Context, queue, event string, msg *Message) {
	if h.bus == nil {
		return
	}
	if err := h.bus.PublishDLQEvent(ctx, queue, event, msg); err != nil {
		h.logger.Warn(ctx, "dlq event publish failed",
			observe.Field{Key: "queue", Value: queue},
			observe.Field{Key: "event", Value: event},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}
