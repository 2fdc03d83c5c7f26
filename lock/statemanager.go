package lock

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonwraymond/toolops-ontology/cache"
	"github.com/jonwraymond/toolops-ontology/observe"
)

// branchStateTTL is the cache TTL for branch_state:{branch} entries.
const branchStateTTL = 3600 * time.Second

// DurableStore is the optional collaborator persisting branch state
// and transitions. Either this or Cache may be absent; the state
// manager stays correct on the in-memory map alone.
type DurableStore interface {
	StoreBranchState(ctx context.Context, info *BranchStateInfo) error
	StoreStateTransition(ctx context.Context, t *BranchStateTransition) error
	GetBranchState(ctx context.Context, branch string) (*BranchStateInfo, bool, error)
}

// validTransitions is the fixed transition relation for branch
// lifecycle states.
var validTransitions = map[BranchState]map[BranchState]bool{
	StateActive:         {StateLockedForWrite: true, StateError: true},
	StateLockedForWrite: {StateReady: true, StateError: true},
	StateReady:          {StateActive: true, StateError: true},
	StateError:          {StateActive: true},
}

// IsValidTransition reports whether a transition from one BranchState
// to another is in the fixed relation.
func IsValidTransition(from, to BranchState) bool {
	return validTransitions[from][to]
}

// StateManager owns each branch's BranchStateInfo, reading through a
// cache then the durable store then falling back to a fresh default
// record, and writing through both collaborators on every change.
type StateManager struct {
	cache  cache.Cache
	store  DurableStore
	logger observe.Logger

	memMu sync.RWMutex
	mem   map[string]*BranchStateInfo
}

// NewStateManager creates a StateManager. cache and store may both be
// nil; in that case the manager is authoritative purely in-process.
func NewStateManager(c cache.Cache, store DurableStore, logger observe.Logger) *StateManager {
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &StateManager{cache: c, store: store, logger: logger, mem: make(map[string]*BranchStateInfo)}
}

func stateCacheKey(branch string) string { return "branch_state:" + branch }

// GetBranchState resolves state via in-memory -> cache -> store ->
// default, caching the result on the way back out.
func (m *StateManager) GetBranchState(ctx context.Context, branch string) (*BranchStateInfo, error) {
	m.memMu.RLock()
	if info, ok := m.mem[branch]; ok {
		cp := *info
		m.memMu.RUnlock()
		return &cp, nil
	}
	m.memMu.RUnlock()

	if m.cache != nil {
		if data, ok := m.cache.Get(ctx, stateCacheKey(branch)); ok {
			var info BranchStateInfo
			if err := json.Unmarshal(data, &info); err == nil {
				m.setMem(branch, &info)
				return &info, nil
			}
		}
	}

	if m.store != nil {
		info, found, err := m.store.GetBranchState(ctx, branch)
		if err != nil {
			m.logger.Warn(ctx, "branch state durable lookup failed",
				observe.Field{Key: "branch", Value: branch},
				observe.Field{Key: "error", Value: err.Error()},
			)
		} else if found {
			m.setMem(branch, info)
			m.cacheState(ctx, info)
			return info, nil
		}
	}

	info := defaultBranchState(branch)
	m.setMem(branch, info)
	return info, nil
}

func (m *StateManager) setMem(branch string, info *BranchStateInfo) {
	m.memMu.Lock()
	cp := *info
	m.mem[branch] = &cp
	m.memMu.Unlock()
}

func (m *StateManager) cacheState(ctx context.Context, info *BranchStateInfo) {
	if m.cache == nil {
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, stateCacheKey(info.BranchName), data, branchStateTTL); err != nil {
		m.logger.Warn(ctx, "branch state cache write failed",
			observe.Field{Key: "branch", Value: info.BranchName},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

// Transition validates and applies a state change, persisting both the
// updated BranchStateInfo and a BranchStateTransition audit record.
func (m *StateManager) Transition(ctx context.Context, branch string, to BranchState, by, reason, trigger string) (*BranchStateInfo, error) {
	info, err := m.GetBranchState(ctx, branch)
	if err != nil {
		return nil, err
	}
	if !IsValidTransition(info.CurrentState, to) {
		return nil, ErrInvalidStateTransition
	}

	info.PreviousState = info.CurrentState
	info.CurrentState = to
	info.StateChangedAt = time.Now().UTC()
	info.StateChangedBy = by
	info.StateChangeReason = reason

	m.setMem(branch, info)
	m.cacheState(ctx, info)
	m.persist(ctx, info, &BranchStateTransition{
		Branch: branch, From: info.PreviousState, To: to,
		By: by, Reason: reason, Trigger: trigger, At: info.StateChangedAt,
	})

	return info, nil
}

func (m *StateManager) persist(ctx context.Context, info *BranchStateInfo, t *BranchStateTransition) {
	if m.store == nil {
		return
	}
	if err := m.store.StoreBranchState(ctx, info); err != nil {
		m.logger.Warn(ctx, "branch state durable write failed",
			observe.Field{Key: "branch", Value: info.BranchName},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	if err := m.store.StoreStateTransition(ctx, t); err != nil {
		m.logger.Warn(ctx, "branch state transition write failed",
			observe.Field{Key: "branch", Value: info.BranchName},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

// AddLock records a lock id in the branch's active_locks set.
func (m *StateManager) AddLock(ctx context.Context, branch, lockID string) error {
	info, err := m.GetBranchState(ctx, branch)
	if err != nil {
		return err
	}
	for _, id := range info.ActiveLocks {
		if id == lockID {
			return nil
		}
	}
	info.ActiveLocks = append(info.ActiveLocks, lockID)
	m.setMem(branch, info)
	m.cacheState(ctx, info)
	if m.store != nil {
		_ = m.store.StoreBranchState(ctx, info)
	}
	return nil
}

// RemoveLock drops a lock id from the branch's active_locks set.
func (m *StateManager) RemoveLock(ctx context.Context, branch, lockID string) error {
	info, err := m.GetBranchState(ctx, branch)
	if err != nil {
		return err
	}
	out := info.ActiveLocks[:0]
	for _, id := range info.ActiveLocks {
		if id != lockID {
			out = append(out, id)
		}
	}
	info.ActiveLocks = out
	m.setMem(branch, info)
	m.cacheState(ctx, info)
	if m.store != nil {
		_ = m.store.StoreBranchState(ctx, info)
	}
	return nil
}

// SetIndexingMetadata updates indexing bookkeeping on the branch state.
func (m *StateManager) SetIndexingMetadata(ctx context.Context, branch string, started, completed *time.Time, service string) error {
	info, err := m.GetBranchState(ctx, branch)
	if err != nil {
		return err
	}
	if started != nil {
		info.IndexingStartedAt = started
	}
	if completed != nil {
		info.IndexingCompletedAt = completed
	}
	if service != "" {
		info.IndexingService = service
	}
	m.setMem(branch, info)
	m.cacheState(ctx, info)
	if m.store != nil {
		_ = m.store.StoreBranchState(ctx, info)
	}
	return nil
}
