package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type staticProvider struct {
	name   string
	values map[string]string
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p.values[ref]
	if !ok {
		return "", fmt.Errorf("no such secret %q", ref)
	}
	return v, nil
}

func (p *staticProvider) Close() error { return nil }

func TestResolveValuePassthrough(t *testing.T) {
	r := NewResolver(false)
	got, err := r.ResolveValue(context.Background(), "nats://localhost:4222")
	if err != nil {
		t.Fatalf("ResolveValue: %v", err)
	}
	if got != "nats://localhost:4222" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveValueWholeRef(t *testing.T) {
	r := NewResolver(false, &staticProvider{name: "vault", values: map[string]string{
		"ontology/pg-dsn": "postgres://ontology:hunter2@db:5432/ontology",
	}})
	got, err := r.ResolveValue(context.Background(), "secretref:vault:ontology/pg-dsn")
	if err != nil {
		t.Fatalf("ResolveValue: %v", err)
	}
	if got != "postgres://ontology:hunter2@db:5432/ontology" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveValueInlineRef(t *testing.T) {
	r := NewResolver(false, &staticProvider{name: "vault", values: map[string]string{
		"redis-pass": "s3cret",
	}})
	got, err := r.ResolveValue(context.Background(), "redis://:secretref:vault:redis-pass@cache:6379/0")
	if err != nil {
		t.Fatalf("ResolveValue: %v", err)
	}
	if got != "redis://:s3cret@cache:6379/0" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveValueUnknownProvider(t *testing.T) {
	r := NewResolver(false)
	if _, err := r.ResolveValue(context.Background(), "secretref:vault:x"); err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

func TestResolveValueStrictEmpty(t *testing.T) {
	p := &staticProvider{name: "vault", values: map[string]string{"empty": ""}}
	if _, err := NewResolver(true, p).ResolveValue(context.Background(), "secretref:vault:empty"); err == nil {
		t.Fatal("strict resolver should reject empty values")
	}
	if got, err := NewResolver(false, p).ResolveValue(context.Background(), "secretref:vault:empty"); err != nil || got != "" {
		t.Fatalf("lax resolver: got %q, %v", got, err)
	}
}

func TestResolveMap(t *testing.T) {
	t.Setenv("ONTOLOGY_NATS_HOST", "bus.internal")
	r := NewResolver(false)
	out, err := r.ResolveMap(context.Background(), map[string]string{
		"nats": "nats://${ONTOLOGY_NATS_HOST}:4222",
	})
	if err != nil {
		t.Fatalf("ResolveMap: %v", err)
	}
	if out["nats"] != "nats://bus.internal:4222" {
		t.Fatalf("got %q", out["nats"])
	}
}

func TestParseRef(t *testing.T) {
	for _, tc := range []struct {
		in       string
		provider string
		ref      string
		ok       bool
	}{
		{"secretref:file:audit-token", "file", "audit-token", true},
		{"secretref:vault:ontology/pg-dsn", "vault", "ontology/pg-dsn", true},
		{"secretref:file:", "", "", false},
		{"secretref::ref", "", "", false},
		{"plain value", "", "", false},
	} {
		provider, ref, ok := ParseRef(tc.in)
		if provider != tc.provider || ref != tc.ref || ok != tc.ok {
			t.Errorf("ParseRef(%q) = %q, %q, %v", tc.in, provider, ref, ok)
		}
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "audit-token"), []byte("tok-123\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := NewFileProvider(dir)
	got, err := p.Resolve(context.Background(), "audit-token")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "tok-123" {
		t.Fatalf("got %q", got)
	}
	if _, err := p.Resolve(context.Background(), "../escape"); err == nil {
		t.Fatal("expected traversal ref to be rejected")
	}
}
