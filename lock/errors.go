package lock

import "errors"

// Sentinel errors for lock manager operations. Facade methods return
// conflicts, invalid transitions, request-validation errors, and
// lookup failures (ErrLockNotFound, ErrLockInactive); failures of the
// replica, cache, and durable store are logged and handled internally.
var (
	// ErrLockConflict is returned when an acquire request conflicts
	// with an existing active lock on the branch.
	ErrLockConflict = errors.New("lock: conflicts with an active lock")

	// ErrInvalidStateTransition is returned when a requested branch
	// state transition is not in the fixed transition relation.
	ErrInvalidStateTransition = errors.New("lock: invalid state transition")

	// ErrLockNotFound is returned when a lock id is not in the registry.
	// Release removes a lock from the registry, so a released lock's id
	// also yields this error.
	ErrLockNotFound = errors.New("lock: lock not found")

	// ErrLockInactive is returned when an operation requires an active
	// lock but the lock has already been released or expired.
	ErrLockInactive = errors.New("lock: lock is not active")

	// ErrInvalidResourceScope is returned when a RESOURCE-scope lock is
	// requested without both resource_type and resource_id set.
	ErrInvalidResourceScope = errors.New("lock: resource scope requires resource_type and resource_id")
)

// ConflictError carries the specific lock that caused an acquire
// rejection, for callers that want to inspect it.
type ConflictError struct {
	Branch string
	With   *BranchLock
}

func (e *ConflictError) Error() string {
	return "lock: " + e.Branch + " conflicts with active lock " + e.With.ID
}

func (e *ConflictError) Unwrap() error { return ErrLockConflict }

func (e *ConflictError) Is(target error) bool { return target == ErrLockConflict }
