package validation

import "sync"

// RuleRegistry maps rule name to the Rule, giving callers a place to
// add or replace rules without touching Service.
type RuleRegistry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRuleRegistry creates an empty registry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{rules: make(map[string]Rule)}
}

// Register adds or replaces a rule.
func (r *RuleRegistry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.Name] = rule
}

// Unregister removes a rule by name. Idempotent.
func (r *RuleRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, name)
}

// applicable returns the rules that apply at the given level and
// scope, skipping any name present in skipRules.
func (r *RuleRegistry) applicable(level Level, scope string, skipRules []string) []Rule {
	skip := make(map[string]bool, len(skipRules))
	for _, n := range skipRules {
		skip[n] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Rule
	for _, rule := range r.rules {
		if skip[rule.Name] {
			continue
		}
		if rule.appliesTo(level, scope) {
			out = append(out, rule)
		}
	}
	return out
}

// Names returns every registered rule name.
func (r *RuleRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rules))
	for n := range r.rules {
		out = append(out, n)
	}
	return out
}
