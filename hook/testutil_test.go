package hook

import (
	"context"
	"sync"
)

type fakeValidator struct {
	name    string
	enabled bool
	errs    []ValidationError
	err     error
	calls   int32
	mu      sync.Mutex
}

func (f *fakeValidator) Name() string                         { return f.name }
func (f *fakeValidator) Enabled() bool                        { return f.enabled }
func (f *fakeValidator) Initialize(ctx context.Context) error { return nil }
func (f *fakeValidator) Cleanup(ctx context.Context) error    { return nil }
func (f *fakeValidator) Validate(ctx context.Context, dc *DiffContext) ([]ValidationError, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.errs, f.err
}

func (f *fakeValidator) callCount() int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	name      string
	enabled   bool
	err       error
	mu        sync.Mutex
	published []*DiffContext
	done      chan struct{}
}

func newFakeSink(name string) *fakeSink {
	return &fakeSink{name: name, enabled: true, done: make(chan struct{}, 10)}
}

func (f *fakeSink) Name() string                         { return f.name }
func (f *fakeSink) Enabled() bool                        { return f.enabled }
func (f *fakeSink) Initialize(ctx context.Context) error { return nil }
func (f *fakeSink) Cleanup(ctx context.Context) error    { return nil }
func (f *fakeSink) Publish(ctx context.Context, dc *DiffContext) error {
	f.mu.Lock()
	f.published = append(f.published, dc)
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.err
}

func (f *fakeSink) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeAuditSink struct {
	fakeSink
	mu     sync.Mutex
	events []AuditEvent
}

func newFakeAuditSink() *fakeAuditSink {
	return &fakeAuditSink{fakeSink: fakeSink{name: "audit", enabled: true, done: make(chan struct{}, 10)}}
}

func (f *fakeAuditSink) EmitAudit(ctx context.Context, event AuditEvent) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	return nil
}

func (f *fakeAuditSink) emittedEvents() []AuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AuditEvent(nil), f.events...)
}

type fakeHook struct {
	name    string
	enabled bool
	phase   HookPhase
	err     error
	mu      sync.Mutex
	calls   int
}

func (f *fakeHook) Name() string                      { return f.name }
func (f *fakeHook) Enabled() bool                     { return f.enabled }
func (f *fakeHook) Phase() HookPhase                  { return f.phase }
func (f *fakeHook) Cleanup(ctx context.Context) error { return nil }
func (f *fakeHook) Execute(ctx context.Context, dc *DiffContext) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.err
}

func (f *fakeHook) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testMeta() CommitMeta {
	return CommitMeta{Database: "ontology", Branch: "prod/catalog/write", Author: "alice@example.com", CommitMsg: "test commit", TraceID: "trace-1"}
}
