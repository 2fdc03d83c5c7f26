package hook

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/toolops-ontology/observe"
	"github.com/jonwraymond/toolops-ontology/resilience"
)

// defaultMaxDiffSize is the size gate threshold, 10 MiB.
const defaultMaxDiffSize = 10 * 1024 * 1024

// sizeBypassPrefixes authorizes an oversize commit to skip validation.
var sizeBypassPrefixes = []string{"system@", "admin@", "migration@", "import@"}

func isAuthorizedForSizeBypass(author string) bool {
	for _, p := range sizeBypassPrefixes {
		if strings.HasPrefix(author, p) {
			return true
		}
	}
	return false
}

// ValidationMode selects how the validation phase runs.
type ValidationMode string

const (
	ValidationSync  ValidationMode = "sync"
	ValidationAsync ValidationMode = "async"
)

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Validators  []Validator
	Sinks       []Sink
	Hooks       []Hook
	Logger      observe.Logger
	Observer    observe.Observer
	Mode        ValidationMode // default sync
	MaxDiffSize int            // default 10 MiB
	SinkWorkers int            // default 10, bounds the sink/async-hook bulkhead
	SinkTimeout time.Duration  // per-sink deadline, default 5s
}

// Pipeline is the single long-lived value implementing the commit
// hook algorithm: an explicitly owned value, passed to request
// handlers, rather than a package-level global.
type Pipeline struct {
	validators []Validator
	sinks      []Sink
	hooks      []Hook
	logger     observe.Logger
	obs        observe.Observer
	mode       ValidationMode
	maxSize    int
	sinkExec   *resilience.Executor

	initOnce sync.Once
	initErr  error

	registeredMu sync.Mutex

	bg sync.WaitGroup
}

// NewPipeline creates a Pipeline with defaults applied. Call
// Initialize before the first Run; Run also calls it lazily and
// idempotently.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = observe.NewLogger("info")
	}
	if cfg.Mode == "" {
		cfg.Mode = ValidationSync
	}
	if cfg.MaxDiffSize <= 0 {
		cfg.MaxDiffSize = defaultMaxDiffSize
	}
	if cfg.SinkWorkers <= 0 {
		cfg.SinkWorkers = 10
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	// Sinks run through a shared bulkhead (bounded workers, queueing
	// rather than rejecting when full) with an independent per-sink
	// deadline inside it, so one slow webhook neither starves the
	// pool nor runs unbounded.
	sinkExec := resilience.NewExecutor(
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.SinkWorkers,
			MaxWait:       30 * time.Second,
		})),
		resilience.WithTimeout(cfg.SinkTimeout),
	)
	return &Pipeline{
		validators: append([]Validator(nil), cfg.Validators...),
		sinks:      append([]Sink(nil), cfg.Sinks...),
		hooks:      append([]Hook(nil), cfg.Hooks...),
		logger:     cfg.Logger,
		obs:        cfg.Observer,
		mode:       cfg.Mode,
		maxSize:    cfg.MaxDiffSize,
		sinkExec:   sinkExec,
	}
}

// Initialize calls Initialize on every registered validator and sink,
// isolating failures so one component's init error never disables the
// others. Safe to call concurrently; only the first call does work.
func (p *Pipeline) Initialize(ctx context.Context) error {
	p.initOnce.Do(func() {
		for _, v := range p.snapshotValidators() {
			if err := v.Initialize(ctx); err != nil {
				p.logger.Error(ctx, "validator initialize failed",
					observe.Field{Key: "validator", Value: v.Name()},
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
		}
		for _, s := range p.snapshotSinks() {
			if err := s.Initialize(ctx); err != nil {
				p.logger.Error(ctx, "sink initialize failed",
					observe.Field{Key: "sink", Value: s.Name()},
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
		}
	})
	return p.initErr
}

// RegisterValidator appends a validator. Append-only, safe to call
// concurrently with Run.
func (p *Pipeline) RegisterValidator(v Validator) {
	p.registeredMu.Lock()
	defer p.registeredMu.Unlock()
	p.validators = append(p.validators, v)
}

// RegisterSink appends a sink.
func (p *Pipeline) RegisterSink(s Sink) {
	p.registeredMu.Lock()
	defer p.registeredMu.Unlock()
	p.sinks = append(p.sinks, s)
}

// RegisterHook appends a hook.
func (p *Pipeline) RegisterHook(h Hook) {
	p.registeredMu.Lock()
	defer p.registeredMu.Unlock()
	p.hooks = append(p.hooks, h)
}

func (p *Pipeline) snapshotValidators() []Validator {
	p.registeredMu.Lock()
	defer p.registeredMu.Unlock()
	return append([]Validator(nil), p.validators...)
}

func (p *Pipeline) snapshotSinks() []Sink {
	p.registeredMu.Lock()
	defer p.registeredMu.Unlock()
	return append([]Sink(nil), p.sinks...)
}

func (p *Pipeline) snapshotHooks(phase HookPhase) []Hook {
	p.registeredMu.Lock()
	defer p.registeredMu.Unlock()
	var out []Hook
	for _, h := range p.hooks {
		if h.Phase() == phase {
			out = append(out, h)
		}
	}
	return out
}

// Run builds the DiffContext, runs the size gate, hooks, and
// validators, then schedules sinks and async hooks. On success it
// returns before sink/async-hook tasks complete; they execute in the
// background and are tracked for Shutdown to drain.
func (p *Pipeline) Run(ctx context.Context, meta CommitMeta, diff map[string]any) (RunSummary, error) {
	if err := p.Initialize(ctx); err != nil {
		return RunSummary{}, err
	}
	if _, _, _, ok := meta.BranchSegments(); !ok {
		return RunSummary{}, ErrInvalidBranch
	}

	dc := buildContext(meta, diff, nil, nil)

	size, err := diffSize(diff)
	if err != nil {
		return RunSummary{}, err
	}
	if size > p.maxSize {
		if !isAuthorizedForSizeBypass(meta.Author) {
			return RunSummary{Status: StatusFailed, ValidationErrors: []ValidationError{{
				Code: "size_limit", Message: "diff exceeds max_diff_size", Category: CategoryBusiness, Severity: SeverityHigh,
			}}}, &ValidationFailureError{Errors: []ValidationError{{Code: "size_limit"}}}
		}

		p.auditSizeBypass(ctx, dc)
		p.scheduleSinks(dc)
		return RunSummary{Status: StatusSkipped, Reason: "diff_too_large", Authorized: true}, nil
	}

	for _, h := range p.snapshotHooks(PhasePreCommit) {
		if !h.Enabled() {
			continue
		}
		if err := h.Execute(ctx, dc); err != nil {
			p.logger.Error(ctx, "pre-commit hook failed",
				observe.Field{Key: "hook", Value: h.Name()},
				observe.Field{Key: "error", Value: err.Error()},
			)
			return RunSummary{Status: StatusFailed}, ErrPreCommitHookFailed
		}
	}

	validatorsRun, validationErrs, err := p.runValidation(ctx, dc)
	if err != nil {
		return RunSummary{Status: StatusFailed, ValidatorsRun: validatorsRun, ValidationErrors: validationErrs}, err
	}

	for _, h := range p.snapshotHooks(PhasePostCommit) {
		if !h.Enabled() {
			continue
		}
		if err := h.Execute(ctx, dc); err != nil {
			p.logger.Warn(ctx, "post-commit hook failed",
				observe.Field{Key: "hook", Value: h.Name()},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	sinksRun := p.scheduleSinks(dc)
	p.scheduleAsyncHooks(ctx, dc)

	return RunSummary{Status: StatusSuccess, ValidatorsRun: validatorsRun, SinksRun: sinksRun, ValidationErrors: validationErrs}, nil
}

func diffSize(diff map[string]any) (int, error) {
	data, err := json.Marshal(diff)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// runValidation runs enabled validators in registration order (mode
// sync) or schedules them detached (mode async).
func (p *Pipeline) runValidation(ctx context.Context, dc *DiffContext) (int, []ValidationError, error) {
	validators := p.snapshotValidators()

	if p.mode == ValidationAsync {
		p.bg.Add(1)
		go func() {
			defer p.bg.Done()
			_, errs, _ := p.runValidatorsSync(context.Background(), validators, dc)
			for _, e := range errs {
				p.logger.Error(context.Background(), "async validation error",
					observe.Field{Key: "code", Value: e.Code},
					observe.Field{Key: "severity", Value: string(e.Severity)},
				)
				if e.Severity == SeverityCritical || e.Severity == SeverityHigh {
					p.auditAsyncValidationFailure(context.Background(), dc, e)
				}
			}
		}()
		return len(validators), nil, nil
	}

	n, errs, runErr := p.runValidatorsSync(ctx, validators, dc)
	if len(errs) > 0 {
		return n, errs, &ValidationFailureError{Errors: errs}
	}
	return n, errs, runErr
}

func (p *Pipeline) runValidatorsSync(ctx context.Context, validators []Validator, dc *DiffContext) (int, []ValidationError, error) {
	n := 0
	var all []ValidationError
	for _, v := range validators {
		if !v.Enabled() {
			continue
		}
		n++
		errs, err := v.Validate(ctx, dc)
		if err != nil {
			// In sync mode a validator that cannot complete gates the
			// commit: RuleValidator returns its error here in strict
			// mode, and an unreachable rule engine must fail closed.
			p.logger.Error(ctx, "validator error",
				observe.Field{Key: "validator", Value: v.Name()},
				observe.Field{Key: "error", Value: err.Error()},
			)
			all = append(all, ValidationError{
				Field:    v.Name(),
				Code:     "validator_error",
				Message:  err.Error(),
				Category: CategorySemantic,
				Severity: SeverityCritical,
			})
			continue
		}
		all = append(all, errs...)
	}
	return n, all, nil
}

// scheduleSinks fans every enabled sink out onto the bulkhead-bounded
// background worker pool, tracked so Shutdown can drain them. Sink
// failures never propagate to the caller.
func (p *Pipeline) scheduleSinks(dc *DiffContext) int {
	sinks := p.snapshotSinks()
	var ran int32
	for _, s := range sinks {
		if !s.Enabled() {
			continue
		}
		atomic.AddInt32(&ran, 1)
		p.bg.Add(1)
		go func(s Sink) {
			defer p.bg.Done()
			ctx := context.Background()
			if err := p.sinkExec.Execute(ctx, func(ctx context.Context) error {
				return s.Publish(ctx, dc)
			}); err != nil {
				p.logger.Warn(ctx, "sink publish failed",
					observe.Field{Key: "sink", Value: s.Name()},
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
		}(s)
	}
	return int(ran)
}

func (p *Pipeline) scheduleAsyncHooks(ctx context.Context, dc *DiffContext) {
	for _, h := range p.snapshotHooks(PhaseAsync) {
		if !h.Enabled() {
			continue
		}
		p.bg.Add(1)
		go func(h Hook) {
			defer p.bg.Done()
			if err := p.sinkExec.Execute(context.Background(), func(ctx context.Context) error {
				return h.Execute(ctx, dc)
			}); err != nil {
				p.logger.Warn(context.Background(), "async hook failed",
					observe.Field{Key: "hook", Value: h.Name()},
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
		}(h)
	}
}

// auditEmitter is implemented by sinks that can record audit events
// directly, independent of the regular Publish fan-out. AuditSink
// implements this.
type auditEmitter interface {
	EmitAudit(ctx context.Context, event AuditEvent) error
}

func (p *Pipeline) findAuditEmitter() auditEmitter {
	for _, s := range p.snapshotSinks() {
		if ae, ok := s.(auditEmitter); ok {
			return ae
		}
	}
	return nil
}

// auditSizeBypass records a CRITICAL VALIDATION_BYPASS event with
// bypass_type diff_size_limit.
// Best-effort and asynchronous: the commit never waits on it.
func (p *Pipeline) auditSizeBypass(ctx context.Context, dc *DiffContext) {
	ae := p.findAuditEmitter()
	if ae == nil {
		return
	}
	p.bg.Add(1)
	go func() {
		defer p.bg.Done()
		event := AuditEvent{
			EventType:     "VALIDATION_BYPASS",
			EventCategory: "security",
			Severity:      SeverityCritical,
			UserID:        dc.Meta.Author,
			Branch:        dc.Meta.Branch,
			CommitID:      dc.Meta.CommitID,
			Metadata:      map[string]any{"bypass_type": "diff_size_limit"},
		}
		if err := ae.EmitAudit(context.Background(), event); err != nil {
			p.logger.Warn(context.Background(), "audit bypass emit failed", observe.Field{Key: "error", Value: err.Error()})
		}
	}()
}

// auditAsyncValidationFailure re-reports a high-severity async
// validation error via the audit sink.
func (p *Pipeline) auditAsyncValidationFailure(ctx context.Context, dc *DiffContext, verr ValidationError) {
	ae := p.findAuditEmitter()
	if ae == nil {
		return
	}
	event := AuditEvent{
		EventType:     "VALIDATION_FAILED",
		EventCategory: "validation",
		Severity:      verr.Severity,
		UserID:        dc.Meta.Author,
		Branch:        dc.Meta.Branch,
		CommitID:      dc.Meta.CommitID,
		Metadata:      map[string]any{"code": verr.Code, "field": verr.Field},
	}
	if err := ae.EmitAudit(ctx, event); err != nil {
		p.logger.Warn(ctx, "audit async validation emit failed", observe.Field{Key: "error", Value: err.Error()})
	}
}

// Shutdown waits for in-flight background sink/hook tasks to drain,
// honoring ctx cancellation.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
