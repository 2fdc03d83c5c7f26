// Package dlq implements a dead-letter queue for messages that failed
// processing after exhausting the resilience layer's retry budget: a
// durable store keyed by message id, a handler that retries in place
// or promotes to a poison queue, and a background processor that polls
// each registered queue for ready retries.
//
// dlq depends on resilience for its retry/backoff/circuit-breaker
// machinery (RetryExecutor, Policies) rather than reimplementing retry
// logic, and on observe for logging and metrics.
package dlq
