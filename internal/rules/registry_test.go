package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/jsinspect/domain"
)

func TestDefault(t *testing.T) {
	registry, err := Default()
	require.NoError(t, err)

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, registry, again)

	rule, ok := registry.Rule("eqeqeq")
	require.True(t, ok)
	assert.Equal(t, domain.PriorityCritical, rule.Tier())
	assert.Equal(t, "strict-equality", rule.Fix)

	assert.True(t, registry.IsLineLevel("remove-commented-code"))
	assert.False(t, registry.IsLineLevel("no-var"))
	assert.False(t, registry.IsLineLevel("unknown"))
}

func TestRegistry_RuleSet(t *testing.T) {
	registry, err := Default()
	require.NoError(t, err)

	recommended, err := registry.RuleSet("recommended")
	require.NoError(t, err)
	assert.Equal(t, "recommended", recommended.Identity())
	assert.Len(t, recommended.Rules, len(registry.Rules()))

	security, err := registry.RuleSet("security")
	require.NoError(t, err)
	assert.Contains(t, security.Rules, "no-eval")

	all, err := registry.RuleSet(AllRules)
	require.NoError(t, err)
	assert.Len(t, all.Rules, len(registry.Rules()))

	_, err = registry.RuleSet("nope")
	assert.Error(t, err)
}

func TestRegistry_RuleSetIsACopy(t *testing.T) {
	registry, err := Default()
	require.NoError(t, err)

	rs, _ := registry.RuleSet("security")
	rs.Rules[0] = "mutated"

	again, _ := registry.RuleSet("security")
	assert.NotEqual(t, "mutated", again.Rules[0])
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":   "rules: [",
		"missing id":     "rules:\n  - query: '(x) @violation'\n",
		"missing query":  "rules:\n  - id: a\n",
		"duplicate rule": "rules:\n  - {id: a, query: q}\n  - {id: a, query: q}\n",
		"unknown member": "rules:\n  - {id: a, query: q}\nrule_sets:\n  - {name: s, rules: [b]}\n",
		"reserved name":  "rules:\n  - {id: a, query: q}\nrule_sets:\n  - {name: all, rules: [a]}\n",
		"duplicate set":  "rules:\n  - {id: a, query: q}\nrule_sets:\n  - {name: s, rules: [a]}\n  - {name: s, rules: [a]}\n",
		"invalid guard":  "rules:\n  - {id: a, query: q, fix: delete-lines, fix_guard: '(['}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_Minimal(t *testing.T) {
	registry, err := Parse([]byte("rules:\n  - {id: a, query: '(x) @violation', priority: 7}\n"))
	require.NoError(t, err)

	rule, ok := registry.Rule("a")
	require.True(t, ok)
	assert.Equal(t, domain.PriorityMajor, rule.Tier())
	assert.Empty(t, registry.RuleSets())
}
