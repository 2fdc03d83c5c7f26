package cache

import (
	"strings"
	"testing"
)

func TestDigestKeyerDeterministic(t *testing.T) {
	k := NewDigestKeyer()
	input := map[string]any{
		"data":  map[string]any{"@type": "ObjectType", "@id": "Invoice", "name": "Invoice"},
		"level": "STRICT",
		"scope": "object_type",
	}

	first, err := k.Key("validation", input)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := k.Key("validation", input)
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		if again != first {
			t.Fatalf("nondeterministic key: %q vs %q", again, first)
		}
	}
	if !strings.HasPrefix(first, "validation:") {
		t.Fatalf("key %q missing namespace prefix", first)
	}
}

func TestDigestKeyerDistinguishesInputs(t *testing.T) {
	k := NewDigestKeyer()
	a, _ := k.Key("validation", map[string]any{"level": "STRICT"})
	b, _ := k.Key("validation", map[string]any{"level": "MINIMAL"})
	if a == b {
		t.Fatal("distinct inputs produced the same key")
	}
}

func TestDigestKeyerNestedMapsInSlices(t *testing.T) {
	k := NewDigestKeyer()
	a, err := k.Key("validation", []any{map[string]any{"b": 1, "a": 2}})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	b, _ := k.Key("validation", []any{map[string]any{"a": 2, "b": 1}})
	if a != b {
		t.Fatal("key order inside nested maps must not matter")
	}
}

func TestDigestKeyerNil(t *testing.T) {
	k := NewDigestKeyer()
	if _, err := k.Key("validation", nil); err != nil {
		t.Fatalf("nil input: %v", err)
	}
}

func TestDigestKeyerUnmarshalableInput(t *testing.T) {
	k := NewDigestKeyer()
	if _, err := k.Key("validation", map[string]any{"fn": func() {}}); err == nil {
		t.Fatal("expected error for unmarshalable input")
	}
}
