package dlq

import "errors"

// Sentinel errors for DLQ operations.
var (
	// ErrMessageNotFound is returned when a message id is not present
	// in a queue's live index.
	ErrMessageNotFound = errors.New("dlq: message not found")

	// ErrQueueNotRegistered is returned when an operation references a
	// queue with no registered handler.
	ErrQueueNotRegistered = errors.New("dlq: queue has no registered handler")

	// ErrAlreadyProcessing guards against two concurrent retries of the
	// same message id succeeding.
	ErrAlreadyProcessing = errors.New("dlq: message is already being retried")
)
