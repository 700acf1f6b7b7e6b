package analyzer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/position"
	"github.com/ludo-technologies/jsinspect/internal/rules"
)

const sample = `var a = 1;
if (a == 2) { debugger; }
eval("x");
const s = new String("x");
try { f(); } catch (e) {}
console.log(a);
// foo();
with (obj) { y(); }
`

func newAnalyzer(t *testing.T) (*QueryAnalyzer, *rules.Registry) {
	t.Helper()
	registry, err := rules.Default()
	require.NoError(t, err)
	return New(registry, 8), registry
}

func recommended(t *testing.T, registry *rules.Registry) domain.RuleSet {
	t.Helper()
	rs, err := registry.RuleSet("recommended")
	require.NoError(t, err)
	return rs
}

func byRule(violations []domain.Violation) map[string][]domain.Violation {
	out := make(map[string][]domain.Violation)
	for _, v := range violations {
		out[v.RuleID] = append(out[v.RuleID], v)
	}
	return out
}

func TestQueryAnalyzer_BundledRules(t *testing.T) {
	a, registry := newAnalyzer(t)

	violations, problems, err := a.Analyze(context.Background(), "sample.js", []byte(sample), recommended(t, registry))
	require.NoError(t, err)
	assert.Empty(t, problems)

	got := byRule(violations)
	wantLines := map[string]int{
		"no-var":                1,
		"eqeqeq":                2,
		"no-debugger":           2,
		"no-eval":               3,
		"no-new-wrappers":       4,
		"no-empty-catch":        5,
		"no-console":            6,
		"remove-commented-code": 7,
		"no-with":               8,
	}
	for rule, line := range wantLines {
		require.Len(t, got[rule], 1, rule)
		assert.Equal(t, line, got[rule][0].BeginLine, rule)
	}
	assert.Len(t, violations, len(wantLines))

	for i := 1; i < len(violations); i++ {
		assert.LessOrEqual(t, violations[i-1].BeginLine, violations[i].BeginLine, "violations are sorted by position")
	}
}

func TestQueryAnalyzer_PositionsResolveToNodeText(t *testing.T) {
	a, _ := newAnalyzer(t)
	source := "function f(a) {\n\tif (a == null) {\n\t\treturn 1;\n\t}\n}\n"

	violations, _, err := a.Analyze(context.Background(), "f.js", []byte(source), domain.SingleRule("eqeqeq"))
	require.NoError(t, err)
	require.Len(t, violations, 1)

	v := violations[0]
	assert.Equal(t, 2, v.BeginLine)
	assert.Equal(t, 15, v.BeginColumn, "tab expands to column 8")
	assert.Equal(t, domain.PriorityCritical, v.Priority)
	assert.Equal(t, "f.js", v.File)

	r := position.Resolve(source, v.BeginLine, v.BeginColumn, v.EndLine, v.EndColumn, 8)
	assert.Equal(t, "==", source[r.Start:r.End])
}

func TestQueryAnalyzer_MultiLineNode(t *testing.T) {
	a, _ := newAnalyzer(t)
	source := "var x = {\n  a: 1\n};\n"

	violations, _, err := a.Analyze(context.Background(), "m.js", []byte(source), domain.SingleRule("no-var"))
	require.NoError(t, err)
	require.Len(t, violations, 1)

	v := violations[0]
	assert.Equal(t, 1, v.BeginLine)
	assert.Equal(t, 3, v.EndLine)

	r := position.Resolve(source, v.BeginLine, v.BeginColumn, v.EndLine, v.EndColumn, 8)
	assert.Equal(t, "var x = {\n  a: 1\n};", source[r.Start:r.End])
}

func TestQueryAnalyzer_TypeScript(t *testing.T) {
	a, _ := newAnalyzer(t)
	source := "var n: number = 1;\nexport const el = <div>{n}</div>;\n"

	violations, problems, err := a.Analyze(context.Background(), "view.tsx", []byte(source), domain.SingleRule("no-var"))
	require.NoError(t, err)
	assert.Empty(t, problems)
	require.Len(t, violations, 1)
	assert.Equal(t, "no-var", violations[0].RuleID)
}

func TestQueryAnalyzer_SyntaxError(t *testing.T) {
	a, registry := newAnalyzer(t)

	violations, problems, err := a.Analyze(context.Background(), "bad.js", []byte("var a = ;\n"), recommended(t, registry))
	require.NoError(t, err)
	assert.Empty(t, violations)
	require.Len(t, problems, 1)
	assert.Equal(t, 1, problems[0].Line)
	assert.Equal(t, "bad.js", problems[0].File)
}

func TestQueryAnalyzer_UnknownRule(t *testing.T) {
	a, _ := newAnalyzer(t)

	violations, problems, err := a.Analyze(context.Background(), "a.js", []byte("var a;\n"),
		domain.RuleSet{Rules: []string{"no-such-rule", "no-var"}})
	require.NoError(t, err)
	assert.Len(t, violations, 1)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0].Message, "no-such-rule")
}

func TestQueryAnalyzer_InvalidQuery(t *testing.T) {
	registry, err := rules.Parse([]byte("rules:\n  - {id: broken, query: '(no_such_node) @violation'}\n"))
	require.NoError(t, err)
	a := New(registry, 4)

	_, problems, err := a.Analyze(context.Background(), "a.js", []byte("let a;\n"), domain.SingleRule("broken"))
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0].Message, "broken")

	// the compile failure is cached, not retried
	_, problems, _ = a.Analyze(context.Background(), "b.js", []byte("let b;\n"), domain.SingleRule("broken"))
	assert.Len(t, problems, 1)
}

func TestQueryAnalyzer_Cancelled(t *testing.T) {
	a, registry := newAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := a.Analyze(ctx, "a.js", []byte(sample), recommended(t, registry))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryAnalyzer_Concurrent(t *testing.T) {
	a, registry := newAnalyzer(t)
	rs := recommended(t, registry)

	var wg sync.WaitGroup
	counts := make([]int, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			violations, _, err := a.Analyze(context.Background(), "sample.js", []byte(sample), rs)
			if err == nil {
				counts[i] = len(violations)
			}
		}(i)
	}
	wg.Wait()

	for _, n := range counts {
		assert.Equal(t, counts[0], n)
	}
	assert.NotZero(t, counts[0])
}
