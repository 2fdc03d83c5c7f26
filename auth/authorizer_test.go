package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAuthzErrorMatchesForbidden(t *testing.T) {
	err := &AuthzError{Subject: "alice@co", Resource: "lock", Action: "write", Reason: "no role permits this action"}
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("AuthzError must match ErrForbidden")
	}
	for _, want := range []string{"alice@co", "lock", "write"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestAuthzErrorUnwrap(t *testing.T) {
	cause := errors.New("policy store timeout")
	err := &AuthzError{Subject: "svc@internal", Resource: "dlq", Action: "admin", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("Unwrap must expose the cause")
	}
}

func TestAuthorizerFunc(t *testing.T) {
	called := false
	a := AuthorizerFunc(func(_ context.Context, _ *AuthzRequest) error {
		called = true
		return nil
	})
	if err := a.Authorize(context.Background(), &AuthzRequest{Resource: "commit", Action: "read"}); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !called || a.Name() != "func" {
		t.Fatalf("called=%v name=%q", called, a.Name())
	}
}
