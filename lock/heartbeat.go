package lock

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/toolops-ontology/observe"
)

// maxHeartbeatHistory bounds the retained history per lock.
const maxHeartbeatHistory = 100

// defaultGraceMultiplier is how many missed intervals before a
// heartbeat is considered critical.
const defaultGraceMultiplier = 3

// HeartbeatRecorder is the optional durable collaborator for
// heartbeat history.
type HeartbeatRecorder interface {
	StoreHeartbeatRecord(ctx context.Context, rec *HeartbeatRecord) error
}

// HealthStatus is the result of HeartbeatService.Health.
type HealthStatus struct {
	Enabled      bool
	Last         *time.Time
	SecondsSince float64
	Health       HeartbeatHealth
}

// HeartbeatService tracks per-lock heartbeat activity and health.
type HeartbeatService struct {
	registry *Registry
	recorder HeartbeatRecorder
	logger   observe.Logger

	mu      sync.Mutex
	history map[string][]HeartbeatRecord

	graceMultiplier float64
}

// HeartbeatServiceConfig configures a HeartbeatService.
type HeartbeatServiceConfig struct {
	Registry        *Registry
	Recorder        HeartbeatRecorder // optional
	Logger          observe.Logger
	GraceMultiplier float64 // default 3
}

// NewHeartbeatService creates a HeartbeatService with defaults applied.
func NewHeartbeatService(cfg HeartbeatServiceConfig) *HeartbeatService {
	if cfg.Logger == nil {
		cfg.Logger = observe.NewLogger("info")
	}
	if cfg.GraceMultiplier <= 0 {
		cfg.GraceMultiplier = defaultGraceMultiplier
	}
	return &HeartbeatService{
		registry:        cfg.Registry,
		recorder:        cfg.Recorder,
		logger:          cfg.Logger,
		history:         make(map[string][]HeartbeatRecord),
		graceMultiplier: cfg.GraceMultiplier,
	}
}

// SendHeartbeat checks that the lock is active, updates its
// last-heartbeat bookkeeping, and appends a capped history entry. It
// does not check that service holds the lock: any service may
// heartbeat an active lock. Returns false without mutating anything if
// the lock is missing or inactive.
func (h *HeartbeatService) SendHeartbeat(ctx context.Context, lockID, service string, progress *float64) bool {
	l, ok := h.registry.Get(lockID)
	if !ok || !l.IsActive {
		return false
	}

	now := time.Now().UTC()
	l.LastHeartbeat = &now
	l.HeartbeatSource = service

	status := h.healthFor(l, now)
	rec := HeartbeatRecord{
		LockID:      lockID,
		BranchName:  l.BranchName,
		ServiceName: service,
		HeartbeatAt: now,
		Status:      status,
		Progress:    progress,
	}

	h.mu.Lock()
	hist := append(h.history[lockID], rec)
	if len(hist) > maxHeartbeatHistory {
		hist = hist[len(hist)-maxHeartbeatHistory:]
	}
	h.history[lockID] = hist
	h.mu.Unlock()

	if h.recorder != nil {
		if err := h.recorder.StoreHeartbeatRecord(ctx, &rec); err != nil {
			h.logger.Warn(ctx, "heartbeat record persist failed",
				observe.Field{Key: "lock_id", Value: lockID},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	return true
}

// healthFor computes a lock's current heartbeat health given its
// interval, scaled by the service's grace multiplier.
func (h *HeartbeatService) healthFor(l *BranchLock, now time.Time) HeartbeatHealth {
	if l.HeartbeatIntervalS <= 0 || l.LastHeartbeat == nil {
		return HealthHealthy
	}
	since := now.Sub(*l.LastHeartbeat).Seconds()
	interval := float64(l.HeartbeatIntervalS)
	switch {
	case since > interval*h.graceMultiplier:
		return HealthCritical
	case since > interval:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// Health reports the current heartbeat health of a lock.
func (h *HeartbeatService) Health(lockID string) (HealthStatus, error) {
	l, ok := h.registry.Get(lockID)
	if !ok {
		return HealthStatus{}, ErrLockNotFound
	}
	if l.HeartbeatIntervalS <= 0 {
		return HealthStatus{Enabled: false}, nil
	}

	now := time.Now().UTC()
	status := HealthStatus{Enabled: true, Last: l.LastHeartbeat}
	if l.LastHeartbeat != nil {
		status.SecondsSince = now.Sub(*l.LastHeartbeat).Seconds()
	}
	status.Health = h.healthFor(l, now)
	return status, nil
}

// Expired reports whether a lock's heartbeat has exceeded the
// grace-multiplier threshold.
func (h *HeartbeatService) Expired(l *BranchLock, now time.Time) bool {
	if l.HeartbeatIntervalS <= 0 || l.LastHeartbeat == nil {
		return false
	}
	since := now.Sub(*l.LastHeartbeat).Seconds()
	return since > float64(l.HeartbeatIntervalS)*h.graceMultiplier
}

// ExpiredLocks returns all active, heartbeat-enabled locks whose
// heartbeat has gone stale past the grace threshold.
func (h *HeartbeatService) ExpiredLocks(now time.Time) []*BranchLock {
	var out []*BranchLock
	for _, l := range h.registry.ListActive() {
		if h.Expired(l, now) {
			out = append(out, l)
		}
	}
	return out
}

// Statistics summarizes heartbeat history sizes across tracked locks.
func (h *HeartbeatService) Statistics() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(h.history))
	for id, hist := range h.history {
		out[id] = len(hist)
	}
	return out
}
