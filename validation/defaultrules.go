package validation

import "regexp"

var (
	objectTypeNamePattern = regexp.MustCompile(`^[A-Z][a-zA-Z0-9_]*$`)
	branchNamePattern     = regexp.MustCompile(`^[a-z0-9/_-]+$`)
)

var reservedObjectTypePrefixes = []string{"sys:", "woql:", "rdf:", "owl:"}

var protectedBranchNames = map[string]bool{
	"main": true, "master": true, "production": true, "staging": true,
}

// RegisterDefaultRules adds the built-in business rules to registry,
// scoped to the "object_type"/"branch"/"validation_rule" scopes. The
// naming rules apply at MINIMAL, STANDARD and STRICT, the
// validation_rule condition check at STANDARD and STRICT; none applies
// at PARANOID.
func RegisterDefaultRules(registry *RuleRegistry) {
	registry.Register(Rule{
		Name:   "object_type_naming",
		Levels: []Level{LevelMinimal, LevelStandard, LevelStrict},
		Scopes: []string{"object_type"},
		Check: func(data map[string]any, _ map[string]any) []Error {
			name, _ := data["name"].(string)
			if name == "" {
				return nil
			}
			for _, prefix := range reservedObjectTypePrefixes {
				if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
					return []Error{{Field: "name", Code: "reserved_prefix", Message: "ObjectType name cannot start with reserved prefix: " + name, Rule: "object_type_naming"}}
				}
			}
			if !objectTypeNamePattern.MatchString(name) {
				return []Error{{Field: "name", Code: "naming_convention", Message: "ObjectType name must follow PascalCase convention: " + name, Rule: "object_type_naming"}}
			}
			return nil
		},
	})

	registry.Register(Rule{
		Name:   "branch_naming",
		Levels: []Level{LevelMinimal, LevelStandard, LevelStrict},
		Scopes: []string{"branch"},
		Check: func(data map[string]any, _ map[string]any) []Error {
			name, _ := data["name"].(string)
			if name == "" {
				return nil
			}
			var errs []Error
			if protectedBranchNames[name] {
				protected, _ := data["is_protected"].(bool)
				if !protected {
					errs = append(errs, Error{Field: "is_protected", Code: "must_be_protected", Message: "Branch '" + name + "' must be marked as protected", Rule: "branch_naming"})
				}
			}
			if !branchNamePattern.MatchString(name) {
				errs = append(errs, Error{Field: "name", Code: "naming_convention", Message: "Branch name must use lowercase with hyphens/underscores: " + name, Rule: "branch_naming"})
			}
			return errs
		},
	})

	registry.Register(Rule{
		Name:   "validation_rule_condition",
		Levels: []Level{LevelStandard, LevelStrict},
		Scopes: []string{"validation_rule"},
		Check: func(data map[string]any, _ map[string]any) []Error {
			ruleType, _ := data["rule_type"].(string)
			condition, _ := data["condition"].(map[string]any)
			switch ruleType {
			case "schema":
				if _, ok := condition["schema_path"]; !ok {
					return []Error{{Field: "condition", Code: "missing_schema_path", Message: "Schema validation rule must have 'schema_path' in condition", Rule: "validation_rule_condition"}}
				}
			case "business":
				if _, ok := condition["expression"]; !ok {
					return []Error{{Field: "condition", Code: "missing_expression", Message: "Business validation rule must have 'expression' in condition", Rule: "validation_rule_condition"}}
				}
			}
			return nil
		},
	})
}
