package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/toolops-ontology/observe"
	"github.com/jonwraymond/toolops-ontology/resilience"
)

// commitEvent is the structured payload published to the commit topic.
type commitEvent struct {
	Database  string   `json:"database"`
	Branch    string   `json:"branch"`
	CommitID  string   `json:"commit_id,omitempty"`
	Author    string   `json:"author"`
	CommitMsg string   `json:"commit_msg"`
	TraceID   string   `json:"trace_id"`
	Types     []string `json:"affected_types,omitempty"`
	IDs       []string `json:"affected_ids,omitempty"`
}

// NATSSink publishes a structured commit event to topic
// {prefix}.{env}.{service} derived from the three-segment branch.
// Falls back to discarding silently if no connection was supplied so
// tests and cold starts never fail the pipeline.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSSink wraps an optional, already-connected NATS connection.
// A nil conn makes Publish a no-op, matching the in-memory
// fallback behavior used in tests and cold starts.
func NewNATSSink(conn *nats.Conn, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "terminus.commit"
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

func (s *NATSSink) Name() string                         { return "nats" }
func (s *NATSSink) Enabled() bool                        { return true }
func (s *NATSSink) Initialize(ctx context.Context) error { return nil }
func (s *NATSSink) Cleanup(ctx context.Context) error    { return nil }

func (s *NATSSink) Publish(ctx context.Context, dc *DiffContext) error {
	if s.conn == nil {
		return nil
	}
	env, service, _, ok := dc.Meta.BranchSegments()
	if !ok {
		return ErrInvalidBranch
	}

	data, err := json.Marshal(commitEvent{
		Database: dc.Meta.Database, Branch: dc.Meta.Branch, CommitID: dc.Meta.CommitID,
		Author: dc.Meta.Author, CommitMsg: dc.Meta.CommitMsg, TraceID: dc.Meta.TraceID,
		Types: dc.AffectedTypes, IDs: dc.AffectedIDs,
	})
	if err != nil {
		return fmt.Errorf("hook: marshal commit event: %w", err)
	}

	msg := &nats.Msg{
		Subject: fmt.Sprintf("%s.%s.%s", s.prefix, env, service),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("trace-id", dc.Meta.TraceID)
	msg.Header.Set("author", dc.Meta.Author)
	msg.Header.Set("branch", dc.Meta.Branch)
	return s.conn.PublishMsg(msg)
}

// AuditOperation is the derived CRUD classification of a commit.
type AuditOperation string

const (
	OperationCreate AuditOperation = "CREATE"
	OperationUpdate AuditOperation = "UPDATE"
	OperationDelete AuditOperation = "DELETE"
	OperationWrite  AuditOperation = "WRITE"
)

// AuditEvent is the canonical audit record, posted to
// {audit_url}/api/v2/events.
type AuditEvent struct {
	EventType     string         `json:"event_type"`
	EventCategory string         `json:"event_category"`
	Severity      Severity       `json:"severity"`
	UserID        string         `json:"user_id"`
	Username      string         `json:"username,omitempty"`
	TargetType    string         `json:"target_type,omitempty"`
	TargetID      string         `json:"target_id,omitempty"`
	Operation     AuditOperation `json:"operation,omitempty"`
	Branch        string         `json:"branch,omitempty"`
	CommitID      string         `json:"commit_id,omitempty"`
	TerminusDB    string         `json:"terminus_db,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// deriveOperation classifies a commit as CREATE/UPDATE/DELETE/WRITE
// based on (before, after) presence.
func deriveOperation(before, after map[string]any) AuditOperation {
	switch {
	case before == nil && after != nil:
		return OperationCreate
	case before != nil && after == nil:
		return OperationDelete
	case before != nil && after != nil:
		return OperationUpdate
	default:
		return OperationWrite
	}
}

// AuditSubmitter posts an AuditEvent to the audit service. It keeps no
// fallback itself; AuditSink records events whose submission fails.
type AuditSubmitter interface {
	Submit(ctx context.Context, event AuditEvent) error
}

// HTTPAuditSubmitter posts events as JSON to {baseURL}/api/v2/events.
type HTTPAuditSubmitter struct {
	client  *http.Client
	baseURL string
}

// NewHTTPAuditSubmitter creates an HTTPAuditSubmitter.
func NewHTTPAuditSubmitter(baseURL string, timeout time.Duration) *HTTPAuditSubmitter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPAuditSubmitter{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (a *HTTPAuditSubmitter) Submit(ctx context.Context, event AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("hook: marshal audit event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/v2/events", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("hook: audit service responded %d", resp.StatusCode)
	}
	return nil
}

// AuditSink maps a commit to a canonical AuditEvent and submits it to
// the audit service, with an in-memory fallback log when submission
// fails.
type AuditSink struct {
	submitter AuditSubmitter
	logger    observe.Logger
	executor  *resilience.RetryExecutor

	fallbackMu sync.Mutex
	fallback   []AuditEvent
}

// NewAuditSink creates an AuditSink. submitter may be nil, in which
// case every event goes straight to the local fallback log.
func NewAuditSink(submitter AuditSubmitter, logger observe.Logger) *AuditSink {
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &AuditSink{
		submitter: submitter,
		logger:    logger,
		executor:  resilience.NewRetryExecutor(resilience.RetryExecutorConfig{MaxAttempts: 3}),
	}
}

func (s *AuditSink) Name() string                         { return "audit" }
func (s *AuditSink) Enabled() bool                        { return true }
func (s *AuditSink) Initialize(ctx context.Context) error { return nil }
func (s *AuditSink) Cleanup(ctx context.Context) error    { return nil }

func (s *AuditSink) Publish(ctx context.Context, dc *DiffContext) error {
	event := AuditEvent{
		EventType:     "COMMIT",
		EventCategory: "data",
		Severity:      SeverityLow,
		UserID:        dc.Meta.Author,
		Operation:     deriveOperation(dc.Before, dc.After),
		Branch:        dc.Meta.Branch,
		CommitID:      dc.Meta.CommitID,
		TerminusDB:    dc.Meta.Database,
		RequestID:     dc.Meta.TraceID,
	}
	return s.EmitAudit(ctx, event)
}

// EmitAudit submits one event, retrying through the resilience
// executor and falling back to an in-memory append-only log if every
// attempt fails.
func (s *AuditSink) EmitAudit(ctx context.Context, event AuditEvent) error {
	if s.submitter == nil {
		s.appendFallback(event)
		return nil
	}

	result := s.executor.Execute(ctx, func(ctx context.Context) error {
		return s.submitter.Submit(ctx, event)
	})
	if !result.Success {
		s.logger.Warn(ctx, "audit submit failed, using local fallback",
			observe.Field{Key: "event_type", Value: event.EventType},
		)
		s.appendFallback(event)
	}
	return nil
}

func (s *AuditSink) appendFallback(event AuditEvent) {
	s.fallbackMu.Lock()
	s.fallback = append(s.fallback, event)
	s.fallbackMu.Unlock()
}

// FallbackLog returns a snapshot of events that could not be submitted.
func (s *AuditSink) FallbackLog() []AuditEvent {
	s.fallbackMu.Lock()
	defer s.fallbackMu.Unlock()
	return append([]AuditEvent(nil), s.fallback...)
}

var _ auditEmitter = (*AuditSink)(nil)

// WebhookSink delivers an HTTP POST with configurable URL, timeout,
// and headers, retrying via the resilience executor.
type WebhookSink struct {
	client   *http.Client
	url      string
	headers  map[string]string
	executor *resilience.RetryExecutor
	logger   observe.Logger
}

// WebhookSinkConfig configures a WebhookSink.
type WebhookSinkConfig struct {
	URL     string
	Timeout time.Duration // default 5s
	Headers map[string]string
	Logger  observe.Logger
}

// NewWebhookSink creates a WebhookSink with defaults applied.
func NewWebhookSink(cfg WebhookSinkConfig) *WebhookSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewLogger("info")
	}
	return &WebhookSink{
		client:   &http.Client{Timeout: cfg.Timeout},
		url:      cfg.URL,
		headers:  cfg.Headers,
		executor: resilience.NewRetryExecutor(resilience.RetryExecutorConfig{MaxAttempts: 3, Backoff: resilience.NewBackoffCalculator(resilience.BackoffConfig{Strategy: resilience.BackoffExponential})}),
		logger:   cfg.Logger,
	}
}

func (s *WebhookSink) Name() string                         { return "webhook" }
func (s *WebhookSink) Enabled() bool                        { return s.url != "" }
func (s *WebhookSink) Initialize(ctx context.Context) error { return nil }
func (s *WebhookSink) Cleanup(ctx context.Context) error    { return nil }

func (s *WebhookSink) Publish(ctx context.Context, dc *DiffContext) error {
	payload, err := json.Marshal(commitEvent{
		Database: dc.Meta.Database, Branch: dc.Meta.Branch, CommitID: dc.Meta.CommitID,
		Author: dc.Meta.Author, CommitMsg: dc.Meta.CommitMsg, TraceID: dc.Meta.TraceID,
		Types: dc.AffectedTypes, IDs: dc.AffectedIDs,
	})
	if err != nil {
		return err
	}

	result := s.executor.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range s.headers {
			req.Header.Set(k, v)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("hook: webhook responded %d", resp.StatusCode)
		}
		return nil
	})
	if !result.Success {
		return result.LastErr
	}
	return nil
}

// MetricsSink increments a commit counter and observes a diff-size
// histogram, labeled by database, branch, and author domain.
type MetricsSink struct {
	commitCount  metric.Int64Counter
	diffSizeHist metric.Float64Histogram
}

// NewMetricsSink builds a MetricsSink from an observe.Observer's meter.
func NewMetricsSink(obs observe.Observer) (*MetricsSink, error) {
	meter := obs.Meter()
	commitCount, err := meter.Int64Counter("hook.commits.total", metric.WithDescription("Total commits processed"))
	if err != nil {
		return nil, err
	}
	diffSizeHist, err := meter.Float64Histogram("hook.diff.size_bytes", metric.WithDescription("Diff payload size in bytes"))
	if err != nil {
		return nil, err
	}
	return &MetricsSink{commitCount: commitCount, diffSizeHist: diffSizeHist}, nil
}

func (s *MetricsSink) Name() string                         { return "metrics" }
func (s *MetricsSink) Enabled() bool                        { return true }
func (s *MetricsSink) Initialize(ctx context.Context) error { return nil }
func (s *MetricsSink) Cleanup(ctx context.Context) error    { return nil }

func (s *MetricsSink) Publish(ctx context.Context, dc *DiffContext) error {
	size, err := diffSize(dc.Diff)
	if err != nil {
		size = 0
	}
	attrs := metric.WithAttributes(
		attribute.String("database", dc.Meta.Database),
		attribute.String("branch", dc.Meta.Branch),
		attribute.String("author_domain", dc.Meta.AuthorDomain()),
	)
	s.commitCount.Add(ctx, 1, attrs)
	s.diffSizeHist.Record(ctx, float64(size), attrs)
	return nil
}
