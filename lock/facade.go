package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonwraymond/toolops-ontology/observe"
)

var validate = validator.New()

// AcquireRequest is the input to Facade.Acquire. Struct tags checked by
// go-playground/validator require Branch, Type, and By; validateScope
// separately rejects a RESOURCE-scope request that lacks ResourceType
// or ResourceID.
type AcquireRequest struct {
	Branch             string   `validate:"required"`
	Type               LockType `validate:"required"`
	By                 string   `validate:"required"`
	Scope              LockScope
	ResourceType       string
	ResourceID         string
	Reason             string
	Timeout            time.Duration
	EnableHeartbeat    bool
	HeartbeatIntervalS int
}

func (r *AcquireRequest) validateScope() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	if r.Scope == ScopeResource && (r.ResourceType == "" || r.ResourceID == "") {
		return ErrInvalidResourceScope
	}
	return nil
}

// FacadeConfig configures a Facade.
type FacadeConfig struct {
	Registry   *Registry
	States     *StateManager
	Heartbeats *HeartbeatService
	Cleanup    *CleanupService
	Logger     observe.Logger
}

// Facade composes the registry, state manager, heartbeat service, and
// cleanup service into one public contract. Acquire/Release/state
// transitions are serialized per branch via an internal keyedMutex.
type Facade struct {
	registry   *Registry
	states     *StateManager
	heartbeats *HeartbeatService
	cleanup    *CleanupService
	logger     observe.Logger
	branchMu   *keyedMutex
}

// NewFacade creates a Facade. Registry and States are required;
// Heartbeats and Cleanup may be nil if those features are unused.
func NewFacade(cfg FacadeConfig) *Facade {
	if cfg.Logger == nil {
		cfg.Logger = observe.NewLogger("info")
	}
	return &Facade{
		registry:   cfg.Registry,
		states:     cfg.States,
		heartbeats: cfg.Heartbeats,
		cleanup:    cfg.Cleanup,
		logger:     cfg.Logger,
		branchMu:   newKeyedMutex(),
	}
}

// Acquire loads branch state, builds the candidate lock with a
// type-derived default TTL, conflict-checks against active locks on
// the branch, inserts on success, and transitions
// ACTIVE->LOCKED_FOR_WRITE for branch-scope indexing locks.
func (f *Facade) Acquire(ctx context.Context, req AcquireRequest) (string, error) {
	if req.Scope == "" {
		req.Scope = ScopeBranch
	}
	if err := req.validateScope(); err != nil {
		return "", err
	}

	var lockID string
	var acquireErr error

	f.branchMu.withLock(req.Branch, func() {
		if _, err := f.states.GetBranchState(ctx, req.Branch); err != nil {
			acquireErr = err
			return
		}

		ttl := req.Timeout
		if ttl <= 0 {
			ttl = defaultTimeout(req.Type)
		}
		now := time.Now().UTC()

		candidate := &BranchLock{
			ID:                 uuid.NewString(),
			BranchName:         req.Branch,
			LockType:           req.Type,
			LockScope:          req.Scope,
			ResourceType:       req.ResourceType,
			ResourceID:         req.ResourceID,
			LockedBy:           req.By,
			AcquiredAt:         now,
			ExpiresAt:          now.Add(ttl),
			Reason:             req.Reason,
			AutoReleaseEnabled: true,
			IsActive:           true,
		}
		if req.EnableHeartbeat {
			interval := req.HeartbeatIntervalS
			if interval <= 0 {
				interval = 60
			}
			candidate.HeartbeatIntervalS = interval
			candidate.LastHeartbeat = &now
		}

		if conflict := f.registry.conflicts(candidate); conflict != nil {
			acquireErr = &ConflictError{Branch: req.Branch, With: conflict}
			return
		}

		f.registry.Insert(ctx, candidate)
		if err := f.states.AddLock(ctx, req.Branch, candidate.ID); err != nil {
			f.logger.Warn(ctx, "branch state lock add failed",
				observe.Field{Key: "branch", Value: req.Branch},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}

		if req.Type == LockIndexing && req.Scope == ScopeBranch {
			if _, err := f.states.Transition(ctx, req.Branch, StateLockedForWrite, req.By, req.Reason, "acquire_indexing_lock"); err != nil {
				f.logger.Warn(ctx, "indexing lock transition failed",
					observe.Field{Key: "branch", Value: req.Branch},
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
		}

		lockID = candidate.ID
	})

	return lockID, acquireErr
}

// Release marks the lock released, removes it from the registry and
// the branch's active_locks, and transitions LOCKED_FOR_WRITE->READY
// once no indexing locks remain.
func (f *Facade) Release(ctx context.Context, lockID, releasedBy string) (bool, error) {
	l, ok := f.registry.Get(lockID)
	if !ok || !l.IsActive {
		return false, nil
	}

	var released bool
	f.branchMu.withLock(l.BranchName, func() {
		released = f.releaseLocked(ctx, lockID, releasedBy)
	})

	return released, nil
}

// releaseLocked is the release body. Callers must hold the branch
// mutex for the lock's branch; the per-branch mutex is not reentrant,
// so code already inside withLock must call this instead of Release.
func (f *Facade) releaseLocked(ctx context.Context, lockID, releasedBy string) bool {
	l, ok := f.registry.Get(lockID)
	if !ok || !l.IsActive {
		return false
	}

	now := time.Now().UTC()
	l.IsActive = false
	l.ReleasedAt = &now
	l.ReleasedBy = releasedBy

	f.registry.Remove(ctx, lockID)
	if rmErr := f.states.RemoveLock(ctx, l.BranchName, lockID); rmErr != nil {
		f.logger.Warn(ctx, "branch state lock remove failed",
			observe.Field{Key: "branch", Value: l.BranchName},
			observe.Field{Key: "error", Value: rmErr.Error()},
		)
	}

	if l.LockType == LockIndexing && l.LockScope == ScopeBranch && !f.hasActiveIndexingLocks(l.BranchName) {
		if _, tErr := f.states.Transition(ctx, l.BranchName, StateReady, releasedBy, "indexing_complete", "release_indexing_lock"); tErr != nil {
			f.logger.Warn(ctx, "indexing release transition failed",
				observe.Field{Key: "branch", Value: l.BranchName},
				observe.Field{Key: "error", Value: tErr.Error()},
			)
		}
	}

	return true
}

func (f *Facade) hasActiveIndexingLocks(branch string) bool {
	for _, l := range f.registry.ListByBranch(branch) {
		if l.LockType == LockIndexing {
			return true
		}
	}
	return false
}

// ForceRelease releases a lock irrespective of its state, recording
// the given CleanupReason. Used by the cleanup service (it satisfies
// the Releaser interface) and by ForceUnlock.
func (f *Facade) ForceRelease(ctx context.Context, lockID string, reason CleanupReason, by string) error {
	released, err := f.Release(ctx, lockID, by)
	if err != nil {
		return err
	}
	if !released {
		return nil
	}
	f.logger.Info(ctx, "lock force released",
		observe.Field{Key: "lock_id", Value: lockID},
		observe.Field{Key: "reason", Value: string(reason)},
	)
	return nil
}

// ForceUnlock is an operator-facing alias for ForceRelease with an
// explicit "forced" reason.
func (f *Facade) ForceUnlock(ctx context.Context, lockID, by string) error {
	return f.ForceRelease(ctx, lockID, ReasonForced, by)
}

// ExtendTTL additively extends a lock's expiry. Fails if the lock is
// inactive.
func (f *Facade) ExtendTTL(ctx context.Context, lockID string, by time.Duration, extendedBy, reason string) error {
	l, ok := f.registry.Get(lockID)
	if !ok {
		return ErrLockNotFound
	}
	if !l.IsActive {
		return ErrLockInactive
	}
	l.ExpiresAt = l.ExpiresAt.Add(by)
	f.registry.Insert(ctx, l)
	f.logger.Info(ctx, "lock ttl extended",
		observe.Field{Key: "lock_id", Value: lockID},
		observe.Field{Key: "extended_by", Value: extendedBy},
		observe.Field{Key: "reason", Value: reason},
	)
	return nil
}

// CheckWritePermission reports whether a write action on a branch
// resource is currently allowed, given the branch's state and any
// conflicting active locks. Intended as a pre-write gate; it never
// mutates anything.
func (f *Facade) CheckWritePermission(ctx context.Context, branch, action, resourceType, resourceID string) (bool, string, error) {
	info, err := f.states.GetBranchState(ctx, branch)
	if err != nil {
		return false, "", err
	}
	if info.CurrentState == StateError {
		return false, "branch is in error state", nil
	}

	candidate := &BranchLock{
		BranchName:   branch,
		LockScope:    ScopeResource,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if resourceType == "" {
		candidate.LockScope = ScopeBranch
	}
	if conflict := f.registry.conflicts(candidate); conflict != nil {
		return false, fmt.Sprintf("blocked by lock %s (%s)", conflict.ID, conflict.LockType), nil
	}
	return true, "", nil
}

// LockForIndexing acquires indexing locks for a branch. By default it
// acquires one RESOURCE_TYPE lock per entry in resourceTypes; if
// forceBranch is true it instead acquires a single BRANCH-scope lock
// and logs at WARN.
func (f *Facade) LockForIndexing(ctx context.Context, branch, by, reason string, resourceTypes []string, forceBranch bool) ([]string, error) {
	if forceBranch {
		f.logger.Warn(ctx, "acquiring branch-scope indexing lock",
			observe.Field{Key: "branch", Value: branch},
			observe.Field{Key: "by", Value: by},
		)
		id, err := f.Acquire(ctx, AcquireRequest{
			Branch: branch, Type: LockIndexing, By: by, Scope: ScopeBranch,
			Reason: reason, EnableHeartbeat: true,
		})
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}

	ids := make([]string, 0, len(resourceTypes))
	for _, rt := range resourceTypes {
		id, err := f.Acquire(ctx, AcquireRequest{
			Branch: branch, Type: LockIndexing, By: by, Scope: ScopeResourceType,
			ResourceType: rt, Reason: reason, EnableHeartbeat: true,
		})
		if err != nil {
			for _, acquired := range ids {
				_, _ = f.Release(ctx, acquired, by)
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CompleteIndexing releases a set of indexing locks previously
// returned by LockForIndexing.
func (f *Facade) CompleteIndexing(ctx context.Context, branch, by string, lockIDs []string) error {
	now := time.Now().UTC()
	_ = f.states.SetIndexingMetadata(ctx, branch, nil, &now, by)
	for _, id := range lockIDs {
		if _, err := f.Release(ctx, id, by); err != nil {
			return err
		}
	}
	return nil
}

// GetBranchState returns the current BranchStateInfo for a branch.
func (f *Facade) GetBranchState(ctx context.Context, branch string) (*BranchStateInfo, error) {
	return f.states.GetBranchState(ctx, branch)
}

// SetBranchState forces a state transition outside the acquire/release
// flow, e.g. to recover from ERROR.
func (f *Facade) SetBranchState(ctx context.Context, branch string, to BranchState, by, reason string) (*BranchStateInfo, error) {
	var info *BranchStateInfo
	var err error
	f.branchMu.withLock(branch, func() {
		info, err = f.states.Transition(ctx, branch, to, by, reason, "manual_set_state")
		if err != nil {
			return
		}
		if to == StateError {
			f.releaseAllLocksLocked(ctx, branch, by)
		}
	})
	return info, err
}

// releaseAllLocksLocked force-releases every active lock on branch
// with reason error_state. Callers must hold the branch mutex;
// ForceRelease/Release would re-enter it and deadlock.
func (f *Facade) releaseAllLocksLocked(ctx context.Context, branch, by string) {
	for _, l := range f.registry.ListByBranch(branch) {
		if f.releaseLocked(ctx, l.ID, by) {
			f.logger.Info(ctx, "lock force released",
				observe.Field{Key: "lock_id", Value: l.ID},
				observe.Field{Key: "reason", Value: string(ReasonErrorState)},
			)
		}
	}
}

// SendHeartbeat proxies to the HeartbeatService.
func (f *Facade) SendHeartbeat(ctx context.Context, lockID, service string, progress *float64) bool {
	if f.heartbeats == nil {
		return false
	}
	return f.heartbeats.SendHeartbeat(ctx, lockID, service, progress)
}

// GetLockHealthStatus proxies to the HeartbeatService.
func (f *Facade) GetLockHealthStatus(lockID string) (HealthStatus, error) {
	if f.heartbeats == nil {
		return HealthStatus{}, ErrLockNotFound
	}
	return f.heartbeats.Health(lockID)
}

// ListActiveLocks returns all active locks, optionally filtered by branch.
func (f *Facade) ListActiveLocks(branch string) []*BranchLock {
	if branch == "" {
		return f.registry.ListActive()
	}
	return f.registry.ListByBranch(branch)
}

// GetLockStatus returns a single lock's current record.
func (f *Facade) GetLockStatus(lockID string) (*BranchLock, error) {
	l, ok := f.registry.Get(lockID)
	if !ok {
		return nil, ErrLockNotFound
	}
	return l, nil
}

var _ Releaser = (*Facade)(nil)
