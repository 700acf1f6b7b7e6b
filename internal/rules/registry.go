// Package rules holds the static registry of bundled rules and rule sets.
// The registry is built once and never mutated.
package rules

import (
	_ "embed"
	"fmt"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ludo-technologies/jsinspect/domain"
)

//go:embed rules.yaml
var bundledRules []byte

// AllRules is the pseudo rule set containing every registered rule
const AllRules = "all"

// Rule describes one bundled rule
type Rule struct {
	ID          string `yaml:"id" json:"id"`
	Message     string `yaml:"message" json:"message"`
	Description string `yaml:"description" json:"description"`
	Priority    int    `yaml:"priority" json:"priority"`
	Query       string `yaml:"query" json:"query"`
	// LineLevel rules highlight whole lines rather than the reported columns
	LineLevel bool `yaml:"line_level" json:"line_level"`
	// Fix names the quick fix of the rule, empty if none
	Fix string `yaml:"fix" json:"fix,omitempty"`
	// FixGuard must match the marked text before the fix is applied
	FixGuard string `yaml:"fix_guard" json:"fix_guard,omitempty"`
}

// Tier returns the severity tier of the rule
func (r Rule) Tier() domain.Priority {
	return domain.PriorityOf(r.Priority)
}

// SetDefinition is a named list of rules
type SetDefinition struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Rules       []string `yaml:"rules" json:"rules"`
}

type document struct {
	Rules    []Rule          `yaml:"rules"`
	RuleSets []SetDefinition `yaml:"rule_sets"`
}

// Registry is an immutable index of rules and rule sets
type Registry struct {
	rules []Rule
	byID  map[string]int
	sets  []SetDefinition
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry of the bundled rules
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Parse(bundledRules)
	})
	return defaultRegistry, defaultErr
}

// Parse builds a registry from a YAML rule document
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule registry: %w", err)
	}

	r := &Registry{byID: make(map[string]int, len(doc.Rules))}
	for _, rule := range doc.Rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule without id")
		}
		if rule.Query == "" {
			return nil, fmt.Errorf("rule %s has no query", rule.ID)
		}
		if rule.FixGuard != "" {
			if _, err := regexp.Compile(rule.FixGuard); err != nil {
				return nil, fmt.Errorf("rule %s has an invalid fix guard: %w", rule.ID, err)
			}
		}
		if _, dup := r.byID[rule.ID]; dup {
			return nil, fmt.Errorf("duplicate rule %s", rule.ID)
		}
		r.byID[rule.ID] = len(r.rules)
		r.rules = append(r.rules, rule)
	}

	seen := make(map[string]bool, len(doc.RuleSets))
	for _, set := range doc.RuleSets {
		if set.Name == "" || set.Name == AllRules {
			return nil, fmt.Errorf("invalid rule set name %q", set.Name)
		}
		if seen[set.Name] {
			return nil, fmt.Errorf("duplicate rule set %s", set.Name)
		}
		seen[set.Name] = true
		for _, id := range set.Rules {
			if _, ok := r.byID[id]; !ok {
				return nil, fmt.Errorf("rule set %s references unknown rule %s", set.Name, id)
			}
		}
		r.sets = append(r.sets, set)
	}

	return r, nil
}

// Rule returns a rule by ID
func (r *Registry) Rule(id string) (Rule, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// Rules returns all rules in registration order
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// RuleSets returns the rule set definitions in registration order
func (r *Registry) RuleSets() []SetDefinition {
	out := make([]SetDefinition, len(r.sets))
	copy(out, r.sets)
	return out
}

// RuleSet resolves a rule set by name. "all" selects every rule.
func (r *Registry) RuleSet(name string) (domain.RuleSet, error) {
	if name == AllRules {
		ids := make([]string, len(r.rules))
		for i, rule := range r.rules {
			ids[i] = rule.ID
		}
		return domain.RuleSet{Name: AllRules, Rules: ids}, nil
	}
	for _, set := range r.sets {
		if set.Name == name {
			return domain.RuleSet{Name: set.Name, Rules: append([]string(nil), set.Rules...)}, nil
		}
	}
	return domain.RuleSet{}, fmt.Errorf("unknown rule set %q", name)
}

// IsLineLevel reports whether violations of a rule cover whole lines
func (r *Registry) IsLineLevel(id string) bool {
	rule, ok := r.Rule(id)
	return ok && rule.LineLevel
}
