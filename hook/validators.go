package hook

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jonwraymond/toolops-ontology/observe"
	"github.com/jonwraymond/toolops-ontology/validation"
)

// protectedFields cannot be changed by anyone but a system@ author.
var protectedFields = []string{"created_by", "created_at", "_id", "_rev"}

var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)';?\s*drop\s+table`),
	regexp.MustCompile(`__proto__`),
	regexp.MustCompile(`\.\./\.\./`),
}

// TamperValidator blocks modification of protected fields by non-system
// authors and scans the diff for injection/traversal patterns,
// bypassing (and auditing) the latter unless strictSecurity is set.
type TamperValidator struct {
	strictSecurity bool
	logger         observe.Logger
	audit          auditEmitter
}

// NewTamperValidator creates a TamperValidator. audit may be nil.
func NewTamperValidator(strictSecurity bool, logger observe.Logger, audit auditEmitter) *TamperValidator {
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &TamperValidator{strictSecurity: strictSecurity, logger: logger, audit: audit}
}

func (v *TamperValidator) Name() string                         { return "TamperValidator" }
func (v *TamperValidator) Enabled() bool                        { return true }
func (v *TamperValidator) Initialize(ctx context.Context) error { return nil }
func (v *TamperValidator) Cleanup(ctx context.Context) error    { return nil }

func (v *TamperValidator) Validate(ctx context.Context, dc *DiffContext) ([]ValidationError, error) {
	var errs []ValidationError

	if dc.Before != nil && dc.After != nil && !strings.HasPrefix(dc.Meta.Author, "system@") {
		for _, field := range protectedFields {
			before, bOK := dc.Before[field]
			after, aOK := dc.After[field]
			if bOK && aOK && before != after {
				errs = append(errs, ValidationError{
					Field: field, Code: "protected_field_modified",
					Message:  "tampering detected: attempt to modify protected field '" + field + "'",
					Category: CategorySecurity, Severity: SeverityHigh,
				})
			}
		}
	}

	diffBytes, err := json.Marshal(dc.Diff)
	if err == nil {
		diffStr := strings.ToLower(string(diffBytes))
		for _, pattern := range suspiciousPatterns {
			if !pattern.MatchString(diffStr) {
				continue
			}
			if v.strictSecurity {
				errs = append(errs, ValidationError{
					Code: "suspicious_pattern", Message: "security validation failed: suspicious pattern detected",
					Category: CategorySecurity, Severity: SeverityCritical,
					Context: map[string]any{"pattern": pattern.String()},
				})
				continue
			}
			v.logger.Warn(ctx, "suspicious pattern detected but not blocked",
				observe.Field{Key: "pattern", Value: pattern.String()},
				observe.Field{Key: "author", Value: dc.Meta.Author},
			)
			if v.audit != nil {
				_ = v.audit.EmitAudit(ctx, AuditEvent{
					EventType: "SECURITY_BYPASS", EventCategory: "security", Severity: SeverityCritical,
					UserID: dc.Meta.Author, Branch: dc.Meta.Branch, CommitID: dc.Meta.CommitID,
					Metadata: map[string]any{"pattern": pattern.String()},
				})
			}
		}
	}

	return errs, nil
}

// SchemaDefinition is a minimal JSON-schema-like type for one document
// kind: required fields plus per-field type/range/enum/format
// constraints.
type SchemaDefinition struct {
	Required   []string
	Properties map[string]FieldSchema
}

// FieldSchema constrains one property.
type FieldSchema struct {
	Type      string // string, number, boolean, array, object
	MinLength int
	MaxLength int
	Enum      []string
	Format    string // e.g. "datetime"
}

// SchemaValidator checks a document against a per-@type schema plus
// the business rules baked into the Type/Branch/ValidationRule scopes
// of a validation.Service.
type SchemaValidator struct {
	schemas map[string]SchemaDefinition
	rules   validation.Service
	logger  observe.Logger
}

// NewSchemaValidator creates a SchemaValidator. rules may be nil, in
// which case only the built-in per-type schemas are checked.
func NewSchemaValidator(schemas map[string]SchemaDefinition, rules validation.Service, logger observe.Logger) *SchemaValidator {
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &SchemaValidator{schemas: schemas, rules: rules, logger: logger}
}

func (v *SchemaValidator) Name() string                         { return "SchemaValidator" }
func (v *SchemaValidator) Enabled() bool                        { return true }
func (v *SchemaValidator) Initialize(ctx context.Context) error { return nil }
func (v *SchemaValidator) Cleanup(ctx context.Context) error    { return nil }

func (v *SchemaValidator) Validate(ctx context.Context, dc *DiffContext) ([]ValidationError, error) {
	if dc.After == nil {
		return nil, nil
	}
	docType, _ := dc.After["@type"].(string)
	if docType == "" {
		return nil, nil
	}

	var errs []ValidationError
	if schema, ok := v.schemas[docType]; ok {
		errs = append(errs, validateAgainstSchema(dc.After, schema)...)
	}

	if v.rules != nil {
		scope := schemaScope(docType)
		result, err := v.rules.Validate(ctx, dc.After, validation.LevelStandard, scope, nil, map[string]any{
			"author": dc.Meta.Author, "branch": dc.Meta.Branch, "trace_id": dc.Meta.TraceID,
		})
		if err != nil {
			v.logger.Error(ctx, "schema business rule validation error", observe.Field{Key: "error", Value: err.Error()})
		} else {
			for _, e := range result.Errors {
				errs = append(errs, ValidationError{
					Field: e.Field, Code: e.Code, Message: e.Message,
					Category: CategoryBusiness, Severity: SeverityMedium,
				})
			}
		}
	}

	return errs, nil
}

func schemaScope(docType string) string {
	switch docType {
	case "ObjectType":
		return "object_type"
	case "Branch":
		return "branch"
	case "ValidationRule":
		return "validation_rule"
	default:
		return strings.ToLower(docType)
	}
}

func validateAgainstSchema(doc map[string]any, schema SchemaDefinition) []ValidationError {
	var errs []ValidationError

	for _, field := range schema.Required {
		if _, ok := doc[field]; !ok {
			errs = append(errs, ValidationError{
				Field: field, Code: "missing_required_field", Message: "missing required field: " + field,
				Category: CategorySyntax, Severity: SeverityHigh,
			})
		}
	}

	for name, value := range doc {
		if strings.HasPrefix(name, "@") {
			continue
		}
		fs, ok := schema.Properties[name]
		if !ok {
			continue
		}
		errs = append(errs, validateField(name, value, fs)...)
	}

	return errs
}

func validateField(name string, value any, fs FieldSchema) []ValidationError {
	var errs []ValidationError

	typeMismatch := func(got string) {
		errs = append(errs, ValidationError{
			Field: name, Code: "type_mismatch", Message: "field '" + name + "' must be a " + fs.Type + ", got " + got,
			Category: CategorySyntax, Severity: SeverityHigh,
		})
	}

	switch fs.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			typeMismatch("non-string")
			return errs
		}
		if fs.MinLength > 0 && len(s) < fs.MinLength {
			errs = append(errs, ValidationError{Field: name, Code: "too_short", Message: "field '" + name + "' is too short", Category: CategorySyntax, Severity: SeverityMedium})
		}
		if fs.MaxLength > 0 && len(s) > fs.MaxLength {
			errs = append(errs, ValidationError{Field: name, Code: "too_long", Message: "field '" + name + "' is too long", Category: CategorySyntax, Severity: SeverityMedium})
		}
		if len(fs.Enum) > 0 && !contains(fs.Enum, s) {
			errs = append(errs, ValidationError{Field: name, Code: "invalid_enum", Message: "field '" + name + "' is not one of the allowed values", Category: CategorySyntax, Severity: SeverityMedium})
		}
		if fs.Format == "datetime" {
			if _, err := time.Parse(time.RFC3339, s); err != nil {
				errs = append(errs, ValidationError{Field: name, Code: "invalid_format", Message: "field '" + name + "' must be a valid ISO datetime", Category: CategorySyntax, Severity: SeverityMedium})
			}
		}
	case "number":
		switch value.(type) {
		case float64, int, int64:
		default:
			typeMismatch("non-number")
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			typeMismatch("non-boolean")
		}
	case "array":
		if _, ok := value.([]any); !ok {
			typeMismatch("non-array")
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			typeMismatch("non-object")
		}
	}

	return errs
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// piiPatterns recognizes PII in free-text field values.
var piiPatterns = map[string]*regexp.Regexp{
	"ssn":         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	"credit_card": regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
	"email":       regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	"phone":       regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
}

var piiAllowedFields = map[string]bool{
	"email": true, "contact_email": true, "user_email": true, "owner_email": true,
}

// PIIValidator scans every string leaf of the committed document for
// PII patterns outside the allowed fields. Disabled via
// ENABLE_PII_VALIDATION=false.
type PIIValidator struct{}

// NewPIIValidator creates a PIIValidator.
func NewPIIValidator() *PIIValidator { return &PIIValidator{} }

func (v *PIIValidator) Name() string { return "PIIValidator" }

func (v *PIIValidator) Enabled() bool {
	return strings.ToLower(os.Getenv("ENABLE_PII_VALIDATION")) != "false"
}

func (v *PIIValidator) Initialize(ctx context.Context) error { return nil }
func (v *PIIValidator) Cleanup(ctx context.Context) error    { return nil }

func (v *PIIValidator) Validate(ctx context.Context, dc *DiffContext) ([]ValidationError, error) {
	if dc.After == nil {
		return nil, nil
	}
	var errs []ValidationError
	traversePII(dc.After, "", &errs)
	return errs, nil
}

func traversePII(v any, path string, errs *[]ValidationError) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			next := k
			if path != "" {
				next = path + "." + k
			}
			traversePII(child, next, errs)
		}
	case []any:
		for _, child := range val {
			traversePII(child, path, errs)
		}
	case string:
		fieldName := path
		if i := strings.LastIndexByte(path, '.'); i >= 0 {
			fieldName = path[i+1:]
		}
		if piiAllowedFields[fieldName] {
			return
		}
		for kind, pattern := range piiPatterns {
			if pattern.MatchString(val) {
				*errs = append(*errs, ValidationError{
					Field: path, Code: "pii_detected", Message: "potential " + kind + " detected in non-allowed field",
					Category: CategorySecurity, Severity: SeverityHigh, Context: map[string]any{"type": kind},
				})
			}
		}
	}
}

// RuleValidator delegates to an external rule engine (validation.Service)
// over the commit's after-image. Rule engine errors are bypassed
// (and audited) unless strictValidation is set, matching the
// teacher's STRICT_VALIDATION toggle.
type RuleValidator struct {
	service          validation.Service
	strictValidation bool
	logger           observe.Logger
	audit            auditEmitter
}

// NewRuleValidator creates a RuleValidator. service may be nil, making
// Validate a no-op; audit may be nil.
func NewRuleValidator(service validation.Service, strictValidation bool, logger observe.Logger, audit auditEmitter) *RuleValidator {
	if logger == nil {
		logger = observe.NewLogger("info")
	}
	return &RuleValidator{service: service, strictValidation: strictValidation, logger: logger, audit: audit}
}

func (v *RuleValidator) Name() string                         { return "RuleValidator" }
func (v *RuleValidator) Enabled() bool                        { return v.service != nil }
func (v *RuleValidator) Initialize(ctx context.Context) error { return nil }
func (v *RuleValidator) Cleanup(ctx context.Context) error    { return nil }

func (v *RuleValidator) Validate(ctx context.Context, dc *DiffContext) ([]ValidationError, error) {
	if v.service == nil || dc.After == nil {
		return nil, nil
	}

	docType, _ := dc.After["@type"].(string)
	result, err := v.service.Validate(ctx, dc.After, validation.LevelStandard, schemaScope(docType), nil, map[string]any{
		"author": dc.Meta.Author, "branch": dc.Meta.Branch, "trace_id": dc.Meta.TraceID,
	})
	if err != nil {
		v.logger.Error(ctx, "rule validation error", observe.Field{Key: "error", Value: err.Error()})
		if v.strictValidation {
			return nil, err
		}
		v.logger.Warn(ctx, "rule validation bypassed in non-strict mode",
			observe.Field{Key: "author", Value: dc.Meta.Author},
			observe.Field{Key: "branch", Value: dc.Meta.Branch},
		)
		if v.audit != nil {
			_ = v.audit.EmitAudit(ctx, AuditEvent{
				EventType: "VALIDATION_BYPASS", EventCategory: "validation", Severity: SeverityCritical,
				UserID: dc.Meta.Author, Branch: dc.Meta.Branch, CommitID: dc.Meta.CommitID,
				Metadata: map[string]any{"bypass_type": "rule_validation", "error": err.Error()},
			})
		}
		return nil, nil
	}

	var errs []ValidationError
	for _, e := range result.Errors {
		errs = append(errs, ValidationError{
			Field: e.Field, Code: e.Code, Message: e.Message,
			Category: CategoryBusiness, Severity: SeverityMedium,
		})
	}
	return errs, nil
}

var (
	_ Validator = (*TamperValidator)(nil)
	_ Validator = (*SchemaValidator)(nil)
	_ Validator = (*PIIValidator)(nil)
	_ Validator = (*RuleValidator)(nil)
)
