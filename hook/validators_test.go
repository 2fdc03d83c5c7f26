package hook

import (
	"context"
	"testing"

	"github.com/jonwraymond/toolops-ontology/validation"
)

func TestTamperValidator_BlocksProtectedFieldModification(t *testing.T) {
	v := NewTamperValidator(false, nil, nil)
	dc := &DiffContext{
		Meta:   CommitMeta{Author: "alice@example.com"},
		Diff:   map[string]any{},
		Before: map[string]any{"created_by": "alice"},
		After:  map[string]any{"created_by": "mallory"},
	}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 1 || errs[0].Code != "protected_field_modified" {
		t.Fatalf("errs = %+v, want one protected_field_modified error", errs)
	}
}

func TestTamperValidator_SystemAuthorMayModifyProtectedFields(t *testing.T) {
	v := NewTamperValidator(false, nil, nil)
	dc := &DiffContext{
		Meta:   CommitMeta{Author: "system@migrator"},
		Diff:   map[string]any{},
		Before: map[string]any{"created_by": "alice"},
		After:  map[string]any{"created_by": "mallory"},
	}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %+v, want none for system author", errs)
	}
}

func TestTamperValidator_SuspiciousPatternStrictModeBlocks(t *testing.T) {
	v := NewTamperValidator(true, nil, nil)
	dc := &DiffContext{
		Meta: CommitMeta{Author: "alice@example.com"},
		Diff: map[string]any{"payload": "<script>alert(1)</script>"},
	}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) == 0 {
		t.Fatal("expected suspicious pattern to be blocked in strict mode")
	}
}

func TestTamperValidator_SuspiciousPatternNonStrictModeBypassesAndAudits(t *testing.T) {
	audit := newFakeAuditSink()
	v := NewTamperValidator(false, nil, audit)
	dc := &DiffContext{
		Meta: CommitMeta{Author: "alice@example.com", Branch: "prod/catalog/write"},
		Diff: map[string]any{"payload": "__proto__"},
	}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %+v, want none (bypassed, not blocked)", errs)
	}
	if len(audit.emittedEvents()) != 1 {
		t.Fatalf("expected one audited bypass event, got %d", len(audit.emittedEvents()))
	}
}

func TestSchemaValidator_MissingRequiredField(t *testing.T) {
	schemas := map[string]SchemaDefinition{
		"Widget": {Required: []string{"name"}},
	}
	v := NewSchemaValidator(schemas, nil, nil)
	dc := &DiffContext{After: map[string]any{"@type": "Widget"}}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 1 || errs[0].Code != "missing_required_field" {
		t.Fatalf("errs = %+v, want one missing_required_field error", errs)
	}
}

func TestSchemaValidator_FieldTypeMismatch(t *testing.T) {
	schemas := map[string]SchemaDefinition{
		"Widget": {Properties: map[string]FieldSchema{"count": {Type: "number"}}},
	}
	v := NewSchemaValidator(schemas, nil, nil)
	dc := &DiffContext{After: map[string]any{"@type": "Widget", "count": "not-a-number"}}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 1 || errs[0].Code != "type_mismatch" {
		t.Fatalf("errs = %+v, want one type_mismatch error", errs)
	}
}

func TestSchemaValidator_DelegatesBusinessRulesToValidationService(t *testing.T) {
	registry := validation.NewRuleRegistry()
	validation.RegisterDefaultRules(registry)
	svc := validation.NewRegistryService(registry)

	v := NewSchemaValidator(nil, svc, nil)
	dc := &DiffContext{After: map[string]any{"@type": "ObjectType", "name": "invalidName"}}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) == 0 {
		t.Fatal("expected business rule failure for a non-PascalCase ObjectType name")
	}
}

func TestPIIValidator_DetectsSSNOutsideAllowedFields(t *testing.T) {
	v := NewPIIValidator()
	dc := &DiffContext{After: map[string]any{"notes": "call 123-45-6789 about the contract"}}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) == 0 {
		t.Fatal("expected PII detection for SSN-shaped string")
	}
}

func TestPIIValidator_AllowsEmailInAllowedField(t *testing.T) {
	v := NewPIIValidator()
	dc := &DiffContext{After: map[string]any{"contact_email": "alice@example.com"}}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %+v, want none for allow-listed email field", errs)
	}
}

func TestRuleValidator_NonStrictModeBypassesEngineErrorAndAudits(t *testing.T) {
	audit := newFakeAuditSink()
	failing := failingService{}
	v := NewRuleValidator(failing, false, nil, audit)
	dc := &DiffContext{Meta: testMeta(), After: map[string]any{"@type": "Widget"}}
	errs, err := v.Validate(context.Background(), dc)
	if err != nil {
		t.Fatalf("expected bypass, got error: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("errs = %+v, want none", errs)
	}
	if len(audit.emittedEvents()) != 1 {
		t.Fatalf("expected one audited bypass event, got %d", len(audit.emittedEvents()))
	}
}

func TestRuleValidator_StrictModePropagatesEngineError(t *testing.T) {
	v := NewRuleValidator(failingService{}, true, nil, nil)
	dc := &DiffContext{Meta: testMeta(), After: map[string]any{"@type": "Widget"}}
	_, err := v.Validate(context.Background(), dc)
	if err == nil {
		t.Fatal("expected strict mode to propagate the engine error")
	}
}

type failingService struct{}

func (failingService) Validate(ctx context.Context, data map[string]any, level validation.Level, scope string, skipRules []string, contextData map[string]any) (validation.Result, error) {
	return validation.Result{}, errFakeEngine
}

var errFakeEngine = errFake("rule engine unavailable")

type errFake string

func (e errFake) Error() string { return string(e) }
