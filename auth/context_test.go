package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentityRoundTrip(t *testing.T) {
	id := &Identity{Principal: "migration@co", Method: AuthMethodAPIKey}
	ctx := WithIdentity(context.Background(), id)

	if got := IdentityFromContext(ctx); got != id {
		t.Fatalf("got %+v", got)
	}
	if got := PrincipalFromContext(ctx); got != "migration@co" {
		t.Fatalf("principal = %q", got)
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil {
		t.Fatal("expected nil identity")
	}
	if PrincipalFromContext(ctx) != "" {
		t.Fatal("expected empty principal")
	}
	if HeadersFromContext(ctx) != nil {
		t.Fatal("expected nil headers")
	}
}

func TestWithAuthHeaders(t *testing.T) {
	var seen map[string][]string
	handler := WithAuthHeaders(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = HeadersFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/commits", nil)
	req.Header.Set("X-API-Key", "svc-key")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(seen["X-Api-Key"]) == 0 && len(seen["X-API-Key"]) == 0 {
		t.Fatalf("headers not propagated: %v", seen)
	}
}
