package lock

import (
	"context"
	"sync"

	"github.com/jonwraymond/toolops-ontology/observe"
)

// Replica is a best-effort distributed copy of the lock registry,
// keyed by prefix branch_lock:{id}. Its failures never block registry
// operations; callers log and continue on the in-memory copy.
type Replica interface {
	PutLock(ctx context.Context, lock *BranchLock) error
	DeleteLock(ctx context.Context, id string) error
}

// Registry is the strongly-consistent in-process map id -> BranchLock,
// with an optional write-through Replica for cross-process
// visibility.
type Registry struct {
	mu      sync.RWMutex
	locks   map[string]*BranchLock
	replica Replica
	logger  observe.Logger
}

// NewRegistry creates an empty Registry. replica and logger may be nil.
func NewRegistry(replica Replica, logger observe.Logger) *Registry {
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &Registry{
		locks:   make(map[string]*BranchLock),
		replica: replica,
		logger:  logger,
	}
}

// Insert adds a lock to the registry and best-effort replicates it.
func (r *Registry) Insert(ctx context.Context, l *BranchLock) {
	r.mu.Lock()
	r.locks[l.ID] = l
	r.mu.Unlock()

	if r.replica != nil {
		if err := r.replica.PutLock(ctx, l); err != nil {
			r.logger.Warn(ctx, "lock replica put failed",
				observe.Field{Key: "lock_id", Value: l.ID},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}
}

// Get looks up a lock by id.
func (r *Registry) Get(id string) (*BranchLock, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.locks[id]
	return l, ok
}

// Remove deletes a lock from the registry and best-effort replicates
// the deletion.
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	delete(r.locks, id)
	r.mu.Unlock()

	if r.replica != nil {
		if err := r.replica.DeleteLock(ctx, id); err != nil {
			r.logger.Warn(ctx, "lock replica delete failed",
				observe.Field{Key: "lock_id", Value: id},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}
}

// ListByBranch returns all active locks held on a branch.
func (r *Registry) ListByBranch(branch string) []*BranchLock {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*BranchLock
	for _, l := range r.locks {
		if l.BranchName == branch && l.IsActive {
			out = append(out, l)
		}
	}
	return out
}

// ListActive returns every active lock across all branches.
func (r *Registry) ListActive() []*BranchLock {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*BranchLock, 0, len(r.locks))
	for _, l := range r.locks {
		if l.IsActive {
			out = append(out, l)
		}
	}
	return out
}

// conflicts reports the first active lock on the branch that conflicts
// with candidate, if any.
func (r *Registry) conflicts(candidate *BranchLock) *BranchLock {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.locks {
		if !l.IsActive || l.ID == candidate.ID {
			continue
		}
		if l.conflictsWith(candidate) {
			return l
		}
	}
	return nil
}
