package lock

import (
	"context"
	"testing"
	"time"
)

type fakeReleaser struct {
	released map[string]CleanupReason
}

func newFakeReleaser() *fakeReleaser {
	return &fakeReleaser{released: make(map[string]CleanupReason)}
}

func (f *fakeReleaser) ForceRelease(_ context.Context, lockID string, reason CleanupReason, _ string) error {
	f.released[lockID] = reason
	return nil
}

func TestCleanupService_Sweep_ReleasesTTLExpired(t *testing.T) {
	reg := NewRegistry(nil, nil)
	l := newActiveLock("expired", "dev/svc/x", ScopeBranch, "", "")
	l.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	reg.Insert(testCtx(), l)

	rel := newFakeReleaser()
	cs := NewCleanupService(CleanupServiceConfig{Registry: reg, Releaser: rel})

	stats := cs.Sweep(testCtx())
	if stats.TTLExpired != 1 {
		t.Fatalf("expected 1 TTL-expired release, got %+v", stats)
	}
	if rel.released["expired"] != ReasonTTLExpired {
		t.Fatalf("expected TTL_EXPIRED reason, got %v", rel.released["expired"])
	}
}

func TestCleanupService_Sweep_ReleasesHeartbeatMissed(t *testing.T) {
	reg := NewRegistry(nil, nil)
	l := newActiveLock("stale", "dev/svc/x", ScopeBranch, "", "")
	l.HeartbeatIntervalS = 5
	stale := time.Now().UTC().Add(-time.Minute)
	l.LastHeartbeat = &stale
	reg.Insert(testCtx(), l)

	hb := NewHeartbeatService(HeartbeatServiceConfig{Registry: reg})
	rel := newFakeReleaser()
	cs := NewCleanupService(CleanupServiceConfig{Registry: reg, Heartbeats: hb, Releaser: rel})

	stats := cs.Sweep(testCtx())
	if stats.HeartbeatMissed != 1 {
		t.Fatalf("expected 1 heartbeat-missed release, got %+v", stats)
	}
	if rel.released["stale"] != ReasonHeartbeatMissed {
		t.Fatalf("expected HEARTBEAT_MISSED reason, got %v", rel.released["stale"])
	}
}

func TestCleanupService_ForceCleanupBranch(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.Insert(testCtx(), newActiveLock("a", "dev/svc/x", ScopeBranch, "", ""))
	reg.Insert(testCtx(), newActiveLock("b", "dev/svc/y", ScopeBranch, "", ""))

	rel := newFakeReleaser()
	cs := NewCleanupService(CleanupServiceConfig{Registry: reg, Releaser: rel})

	n, err := cs.ForceCleanupBranch(testCtx(), "dev/svc/x", "manual", "operator")
	if err != nil {
		t.Fatalf("ForceCleanupBranch: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 lock released, got %d", n)
	}
	if _, ok := rel.released["b"]; ok {
		t.Fatal("expected branch-y lock untouched")
	}
}
