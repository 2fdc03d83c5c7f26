package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

// BulkheadConfig bounds concurrent operations.
type BulkheadConfig struct {
	// MaxConcurrent is the slot count. Default 10.
	MaxConcurrent int

	// MaxWait is how long Acquire blocks for a slot. Zero fails
	// immediately with ErrBulkheadFull.
	MaxWait time.Duration
}

// Bulkhead is a channel-backed semaphore isolating one dependency's
// concurrency from the rest of the process. The hook pipeline uses one
// to bound its sink worker pool.
type Bulkhead struct {
	maxConcurrent int
	maxWait       time.Duration
	slots         chan struct{}

	active   atomic.Int32
	peak     atomic.Int32
	rejected atomic.Int64
}

// NewBulkhead creates a bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		maxConcurrent: config.MaxConcurrent,
		maxWait:       config.MaxWait,
		slots:         make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire claims a slot, waiting up to MaxWait. Every successful
// Acquire must be paired with Release.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		b.noteAcquired()
		return nil
	default:
	}

	if b.maxWait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.maxWait)
	defer timer.Stop()
	select {
	case b.slots <- struct{}{}:
		b.noteAcquired()
		return nil
	case <-timer.C:
		b.rejected.Add(1)
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) noteAcquired() {
	active := b.active.Add(1)
	for {
		peak := b.peak.Load()
		if active <= peak || b.peak.CompareAndSwap(peak, active) {
			return
		}
	}
}

// Release returns a slot. Releasing without a matching Acquire is a
// no-op.
func (b *Bulkhead) Release() {
	select {
	case <-b.slots:
		b.active.Add(-1)
	default:
	}
}

// Execute runs op inside a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// BulkheadMetrics is a point-in-time view of bulkhead pressure.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}

// Metrics snapshots the bulkhead counters.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	active := int(b.active.Load())
	return BulkheadMetrics{
		Active:        active,
		MaxActive:     int(b.peak.Load()),
		Available:     b.maxConcurrent - active,
		MaxConcurrent: b.maxConcurrent,
		Rejected:      b.rejected.Load(),
	}
}
