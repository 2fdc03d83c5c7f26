package main

import (
	"context"
	"testing"

	"github.com/jonwraymond/toolops-ontology/auth"
)

func TestBuildAuthorizer_ReadIsOpen(t *testing.T) {
	authz := buildAuthorizer()
	err := authz.Authorize(context.Background(), &auth.AuthzRequest{
		Resource: "branch", Action: "read",
	})
	if err != nil {
		t.Fatalf("read should always be authorized, got %v", err)
	}
}

func TestBuildAuthorizer_WriteRequiresIdentity(t *testing.T) {
	authz := buildAuthorizer()

	err := authz.Authorize(context.Background(), &auth.AuthzRequest{
		Resource: "commit", Action: "write",
	})
	if err == nil {
		t.Fatal("anonymous write should be denied")
	}

	err = authz.Authorize(context.Background(), &auth.AuthzRequest{
		Subject:  &auth.Identity{Principal: "svc-ci"},
		Resource: "commit", Action: "write",
	})
	if err != nil {
		t.Fatalf("authenticated write should be allowed, got %v", err)
	}
}

func TestWireLockManager_InMemoryWithoutBackingStores(t *testing.T) {
	cfg := loadConfig()
	logger := testLogger()

	mgr := wireLockManager(cfg, logger, nil, nil)
	if mgr.facade == nil {
		t.Fatal("facade should be non-nil even without Redis/Postgres")
	}
	if mgr.cleanup == nil {
		t.Fatal("cleanup service should be non-nil even without Redis/Postgres")
	}
}

func TestWireDLQ_InMemoryWithoutBackingStores(t *testing.T) {
	cfg := loadConfig()
	logger := testLogger()

	handler := wireDLQ(cfg, logger, nil, nil, nil)
	if handler == nil {
		t.Fatal("handler should be non-nil even without Redis/NATS")
	}
}

func TestResolveSecrets_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_REDIS_HOST", "cache.internal:6379")
	cfg := config{RedisAddr: "${TEST_REDIS_HOST}"}

	resolved, err := resolveSecrets(context.Background(), cfg)
	if err != nil {
		t.Fatalf("resolveSecrets: %v", err)
	}
	if resolved.RedisAddr != "cache.internal:6379" {
		t.Fatalf("RedisAddr = %q, want expanded value", resolved.RedisAddr)
	}
}

func TestResolveSecrets_LeavesEmptyFieldsAlone(t *testing.T) {
	cfg := config{}
	resolved, err := resolveSecrets(context.Background(), cfg)
	if err != nil {
		t.Fatalf("resolveSecrets: %v", err)
	}
	if resolved.PostgresDSN != "" || resolved.NATSURL != "" {
		t.Fatal("unset fields should remain empty")
	}
}
