package secret

import (
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("ONTOLOGY_REDIS_HOST", "cache.internal")

	got, err := ExpandEnvStrict("${ONTOLOGY_REDIS_HOST}:6379")
	if err != nil {
		t.Fatalf("ExpandEnvStrict: %v", err)
	}
	if got != "cache.internal:6379" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandEnvStrictMissing(t *testing.T) {
	_, err := ExpandEnvStrict("${ONTOLOGY_NO_SUCH_VAR_A} ${ONTOLOGY_NO_SUCH_VAR_B} ${ONTOLOGY_NO_SUCH_VAR_A}")
	if err == nil {
		t.Fatal("expected error for missing variables")
	}
	// Each missing variable is reported once, sorted.
	if !strings.Contains(err.Error(), "ONTOLOGY_NO_SUCH_VAR_A, ONTOLOGY_NO_SUCH_VAR_B") {
		t.Fatalf("error = %v", err)
	}
}

func TestExpandEnvStrictEscapesAndBareDollar(t *testing.T) {
	got, err := ExpandEnvStrict("cost: $$5 for $user")
	if err != nil {
		t.Fatalf("ExpandEnvStrict: %v", err)
	}
	if got != "cost: $5 for $user" {
		t.Fatalf("got %q", got)
	}
}
