package lock

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/toolops-ontology/observe"
)

// CleanupStats summarizes one sweep's outcome.
type CleanupStats struct {
	Scanned         int
	TTLExpired      int
	HeartbeatMissed int
	Errors          int
}

// Releaser releases a lock; satisfied by *Facade. Kept as an interface
// so CleanupService has no import cycle back to the facade.
type Releaser interface {
	ForceRelease(ctx context.Context, lockID string, reason CleanupReason, by string) error
}

// CleanupServiceConfig configures a CleanupService.
type CleanupServiceConfig struct {
	Registry        *Registry
	Heartbeats      *HeartbeatService
	Releaser        Releaser
	Logger          observe.Logger
	CleanupInterval time.Duration // default 300s
	BatchSize       int           // default 100
}

// CleanupService periodically releases expired or heartbeat-missed
// locks.
type CleanupService struct {
	registry   *Registry
	heartbeats *HeartbeatService
	releaser   Releaser
	logger     observe.Logger

	interval  time.Duration
	batchSize int

	mu    sync.Mutex
	stats CleanupStats

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCleanupService creates a CleanupService with defaults applied.
func NewCleanupService(cfg CleanupServiceConfig) *CleanupService {
	if cfg.Logger == nil {
		cfg.Logger = observe.NewLogger("info")
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 300 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &CleanupService{
		registry:   cfg.Registry,
		heartbeats: cfg.Heartbeats,
		releaser:   cfg.Releaser,
		logger:     cfg.Logger,
		interval:   cfg.CleanupInterval,
		batchSize:  cfg.BatchSize,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the periodic sweep loop. Call Stop to cancel it
// cooperatively and await its exit.
func (c *CleanupService) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.Sweep(ctx)
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to exit.
func (c *CleanupService) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Sweep runs one cleanup pass immediately, releasing TTL-expired and
// heartbeat-missed locks. A pass examines at most batchSize active
// locks; any beyond that wait for a later pass.
func (c *CleanupService) Sweep(ctx context.Context) CleanupStats {
	now := time.Now().UTC()
	active := c.registry.ListActive()

	pass := CleanupStats{}
	processed := 0
	for _, l := range active {
		if processed >= c.batchSize {
			break
		}
		processed++
		pass.Scanned++

		switch {
		case l.AutoReleaseEnabled && now.After(l.ExpiresAt):
			if err := c.releaser.ForceRelease(ctx, l.ID, ReasonTTLExpired, "cleanup_service"); err != nil {
				pass.Errors++
				c.logger.Error(ctx, "cleanup release failed",
					observe.Field{Key: "lock_id", Value: l.ID},
					observe.Field{Key: "error", Value: err.Error()},
				)
				continue
			}
			pass.TTLExpired++
		case c.heartbeats != nil && c.heartbeats.Expired(l, now):
			if err := c.releaser.ForceRelease(ctx, l.ID, ReasonHeartbeatMissed, "cleanup_service"); err != nil {
				pass.Errors++
				c.logger.Error(ctx, "cleanup release failed",
					observe.Field{Key: "lock_id", Value: l.ID},
					observe.Field{Key: "error", Value: err.Error()},
				)
				continue
			}
			pass.HeartbeatMissed++
		}
	}

	c.mu.Lock()
	c.stats.Scanned += pass.Scanned
	c.stats.TTLExpired += pass.TTLExpired
	c.stats.HeartbeatMissed += pass.HeartbeatMissed
	c.stats.Errors += pass.Errors
	c.mu.Unlock()

	c.logger.Info(ctx, "lock cleanup sweep complete",
		observe.Field{Key: "scanned", Value: pass.Scanned},
		observe.Field{Key: "ttl_expired", Value: pass.TTLExpired},
		observe.Field{Key: "heartbeat_missed", Value: pass.HeartbeatMissed},
	)

	return pass
}

// ForceCleanupBranch releases all active locks on a branch regardless
// of expiry.
func (c *CleanupService) ForceCleanupBranch(ctx context.Context, branch, reason, by string) (int, error) {
	locks := c.registry.ListByBranch(branch)
	released := 0
	for _, l := range locks {
		if err := c.releaser.ForceRelease(ctx, l.ID, CleanupReason(reason), by); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

// Statistics returns cumulative sweep counters.
func (c *CleanupService) Statistics() CleanupStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetStatistics zeroes cumulative sweep counters.
func (c *CleanupService) ResetStatistics() {
	c.mu.Lock()
	c.stats = CleanupStats{}
	c.mu.Unlock()
}
