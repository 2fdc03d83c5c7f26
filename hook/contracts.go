package hook

import "context"

// Validator is a capability-oriented registry entry per Design Note
// "Dynamic dispatch over validators/sinks/hooks": a small interface
// instead of a duck-typed base class. Validate returns the
// ValidationErrors it found; an empty slice means the check passed.
// Validators must be idempotent and free of observable side effects
// other than telemetry.
type Validator interface {
	Name() string
	Enabled() bool
	Initialize(ctx context.Context) error
	Validate(ctx context.Context, dc *DiffContext) ([]ValidationError, error)
	Cleanup(ctx context.Context) error
}

// Sink publishes a DiffContext to some downstream system. Sinks must
// tolerate retries and partial downstream failures internally, and
// must never mutate the DiffContext they receive.
type Sink interface {
	Name() string
	Enabled() bool
	Initialize(ctx context.Context) error
	Publish(ctx context.Context, dc *DiffContext) error
	Cleanup(ctx context.Context) error
}

// HookPhase names when a Hook runs relative to validation.
type HookPhase string

const (
	PhasePreCommit  HookPhase = "pre"
	PhasePostCommit HookPhase = "post"
	PhaseAsync      HookPhase = "async"
)

// Hook is a registered side-effect that runs at a fixed phase.
// Pre-commit hook failures abort the commit; post-commit and async
// hook failures are logged only.
type Hook interface {
	Name() string
	Enabled() bool
	Phase() HookPhase
	Execute(ctx context.Context, dc *DiffContext) error
	Cleanup(ctx context.Context) error
}
