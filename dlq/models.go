package dlq

import (
	"time"

	"github.com/google/uuid"
)

// Reason is why a message was sent to the dead-letter queue.
type Reason string

const (
	ReasonValidationFailed   Reason = "validation_failed"
	ReasonExecutionFailed    Reason = "execution_failed"
	ReasonTimeout            Reason = "timeout"
	ReasonResourceExhausted  Reason = "resource_exhausted"
	ReasonWebhookFailed      Reason = "webhook_failed"
	ReasonMaxRetriesExceeded Reason = "max_retries_exceeded"
	ReasonPoisonMessage      Reason = "poison_message"
	ReasonNetworkError       Reason = "network_error"
	ReasonAuthError          Reason = "auth_error"
	ReasonUnknown            Reason = "unknown"
)

// Status is the lifecycle position of a DLQ message.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusRetrying   Status = "retrying"
	StatusFailed     Status = "failed"
	StatusPoison     Status = "poison"
	StatusExpired    Status = "expired"
	StatusSucceeded  Status = "succeeded"
)

// ErrorEntry is one record in a Message's error history.
type ErrorEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Error      string         `json:"error"`
	Details    map[string]any `json:"details,omitempty"`
	RetryCount int            `json:"retry_count"`
}

// Message is a unit of failed work held in the dead-letter queue.
//
// Invariant: RetryCount <= MaxRetries. A Status of StatusPoison means
// the message has left the live index (it only lives under the
// poison:{queue} key space).
type Message struct {
	MessageID        string         `json:"message_id"`
	QueueName        string         `json:"queue_name"`
	OriginalMessage  map[string]any `json:"original_message"`
	Reason           Reason         `json:"reason"`
	ErrorDetails     string         `json:"error_details"`
	StackTrace       string         `json:"stack_trace,omitempty"`
	RetryCount       int            `json:"retry_count"`
	MaxRetries       int            `json:"max_retries"`
	FirstFailureTime time.Time      `json:"first_failure_time"`
	LastFailureTime  time.Time      `json:"last_failure_time"`
	NextRetryTime    *time.Time     `json:"next_retry_time,omitempty"`
	Status           Status         `json:"status"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ErrorHistory     []ErrorEntry   `json:"error_history,omitempty"`
}

// NewMessage builds a pending Message with a generated id.
func NewMessage(queue string, original map[string]any, reason Reason, errDetails string, maxRetries int) *Message {
	now := time.Now().UTC()
	return &Message{
		MessageID:        uuid.NewString(),
		QueueName:        queue,
		OriginalMessage:  original,
		Reason:           reason,
		ErrorDetails:     errDetails,
		MaxRetries:       maxRetries,
		FirstFailureTime: now,
		LastFailureTime:  now,
		Status:           StatusPending,
	}
}

// AddError records a new failure in the message's history.
func (m *Message) AddError(errText string, details map[string]any) {
	m.ErrorDetails = errText
	m.LastFailureTime = time.Now().UTC()
	m.ErrorHistory = append(m.ErrorHistory, ErrorEntry{
		Timestamp:  m.LastFailureTime,
		Error:      errText,
		Details:    details,
		RetryCount: m.RetryCount,
	})
}

// ShouldRetry reports whether the message is eligible for another
// retry attempt given its current counters and status.
func (m *Message) ShouldRetry() bool {
	if m.RetryCount >= m.MaxRetries {
		return false
	}
	switch m.Status {
	case StatusPoison, StatusExpired, StatusSucceeded:
		return false
	}
	return true
}
