// Package resilience is the platform's unified retry and
// fault-isolation layer. Every component that talks to something that
// can fail — sink fan-out, audit submission, DLQ retries, webhook
// delivery — goes through this package instead of hand-rolling
// backoff loops.
//
// The core pieces mirror the failure modes they guard against:
//
//   - [BackoffCalculator]: pure attempt→delay math with the full
//     strategy set (fixed, linear, exponential, exponential+jitter,
//     fibonacci, decorrelated jitter) and named presets.
//   - [RetryBudget]: a sliding-window budget that refuses retries once
//     they exceed a percentage of total traffic, stopping retry storms
//     before they start.
//   - [CircuitBreaker]: CLOSED/OPEN/HALF_OPEN state machine that fails
//     fast while a dependency is down. The guarded function always
//     runs outside the breaker's lock.
//   - [RetryExecutor]: orchestrates calculator, budget, and breaker
//     around one callable; the only retry entry point the DLQ and
//     sinks use.
//   - [Policies]: the fixed preset table (standard, network,
//     conservative, database, webhook, validation, critical)
//     referenced by name across the platform.
//
// Around those, three smaller guards compose via [Executor]:
// [RateLimiter] (token bucket), [Bulkhead] (concurrency cap), and
// [Timeout] (per-operation deadline). The hook pipeline runs its sink
// pool through an Executor of bulkhead+timeout; the DLQ paces
// background dispatch with a RateLimiter.
//
// Everything here is safe for concurrent use after construction, and
// failures surface as package sentinels (ErrCircuitOpen,
// ErrRetryBudgetExhausted, ErrBulkheadFull, ErrTimeout, ...) checked
// with errors.Is.
package resilience
