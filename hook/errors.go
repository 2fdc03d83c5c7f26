package hook

import "errors"

// Sentinel errors for pipeline operations.
var (
	// ErrInvalidBranch is returned when CommitMeta.Branch is not a
	// three-segment {env}/{service}/{purpose} path.
	ErrInvalidBranch = errors.New("hook: branch must be a three-segment env/service/purpose path")

	// ErrPreCommitHookFailed aborts a commit when a pre-commit hook fails.
	ErrPreCommitHookFailed = errors.New("hook: pre-commit hook failed")
)

// ValidationFailureError carries the aggregated ValidationErrors that
// block a commit in sync mode.
type ValidationFailureError struct {
	Errors []ValidationError
}

func (e *ValidationFailureError) Error() string {
	if len(e.Errors) == 0 {
		return "hook: validation failed"
	}
	return "hook: validation failed: " + e.Errors[0].Message
}

// SizeLimitError describes a diff over the configured max diff size.
// Pipeline.Run does not return it: an unauthorized oversize commit
// fails with a ValidationFailureError carrying code size_limit.
type SizeLimitError struct {
	Size    int
	MaxSize int
}

func (e *SizeLimitError) Error() string {
	return "hook: diff size exceeds limit"
}
