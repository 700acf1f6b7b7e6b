// Package analyzer runs the bundled tree-sitter query rules against
// JavaScript and TypeScript sources.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/parser"
	"github.com/ludo-technologies/jsinspect/internal/position"
	"github.com/ludo-technologies/jsinspect/internal/rules"
)

// violationCapture is the capture name whose nodes are reported
const violationCapture = "violation"

type queryKey struct {
	lang parser.Language
	rule string
}

type compiledQuery struct {
	query *sitter.Query
	err   error
}

// QueryAnalyzer implements domain.Analyzer with tree-sitter queries. It is
// safe for concurrent use; compiled queries are shared between calls.
type QueryAnalyzer struct {
	registry *rules.Registry
	tabWidth int

	mu      sync.Mutex
	queries map[queryKey]compiledQuery
}

// New creates an analyzer over a rule registry. Columns in reported
// violations are expanded with tabWidth.
func New(registry *rules.Registry, tabWidth int) *QueryAnalyzer {
	if tabWidth <= 0 {
		tabWidth = position.DefaultTabWidth
	}
	return &QueryAnalyzer{
		registry: registry,
		tabWidth: tabWidth,
		queries:  make(map[queryKey]compiledQuery),
	}
}

// Analyze parses source and runs every rule of rs. A file with syntax errors
// yields a processing error and no violations.
func (a *QueryAnalyzer) Analyze(ctx context.Context, path string, source []byte, rs domain.RuleSet) ([]domain.Violation, []domain.ProcessingError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	p := parser.ForFile(path)
	defer p.Close()

	tree, err := p.Parse(ctx, path, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if line, bad := parser.FirstSyntaxError(root); bad {
		return nil, []domain.ProcessingError{{File: path, Line: line, Message: "syntax error"}}, nil
	}

	lines := position.NewLineIndex(string(source))
	var (
		violations []domain.Violation
		problems   []domain.ProcessingError
	)
	for _, id := range rs.Rules {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rule, ok := a.registry.Rule(id)
		if !ok {
			problems = append(problems, domain.ProcessingError{File: path, Message: "unknown rule " + id})
			continue
		}
		query, err := a.compile(p.Language(), rule)
		if err != nil {
			problems = append(problems, domain.ProcessingError{File: path, Message: err.Error()})
			continue
		}
		violations = append(violations, a.run(query, rule, root, source, lines, path)...)
	}

	sort.SliceStable(violations, func(i, j int) bool {
		vi, vj := violations[i], violations[j]
		if vi.BeginLine != vj.BeginLine {
			return vi.BeginLine < vj.BeginLine
		}
		return vi.BeginColumn < vj.BeginColumn
	})
	return violations, problems, nil
}

// compile returns the cached query of a rule for a grammar
func (a *QueryAnalyzer) compile(lang parser.Language, rule rules.Rule) (*sitter.Query, error) {
	key := queryKey{lang: lang, rule: rule.ID}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.queries[key]; ok {
		return c.query, c.err
	}

	q, err := sitter.NewQuery([]byte(rule.Query), lang.Grammar())
	if err != nil {
		err = fmt.Errorf("rule %s: invalid %s query: %w", rule.ID, lang, err)
	}
	a.queries[key] = compiledQuery{query: q, err: err}
	return q, err
}

func (a *QueryAnalyzer) run(q *sitter.Query, rule rules.Rule, root *sitter.Node, source []byte, lines *position.LineIndex, path string) []domain.Violation {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	var out []domain.Violation
	seen := make(map[[2]uint32]bool)
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)
		for _, capture := range match.Captures {
			if q.CaptureNameForId(capture.Index) != violationCapture {
				continue
			}
			node := capture.Node
			span := [2]uint32{node.StartByte(), node.EndByte()}
			if seen[span] {
				continue
			}
			seen[span] = true
			out = append(out, a.violationAt(node, rule, lines, path))
		}
	}
	return out
}

// violationAt converts a node's byte points to 1-based, tab-expanded positions
func (a *QueryAnalyzer) violationAt(node *sitter.Node, rule rules.Rule, lines *position.LineIndex, path string) domain.Violation {
	start, end := node.StartPoint(), node.EndPoint()

	beginLine := int(start.Row) + 1
	beginCol := lines.ExpandedColumn(beginLine, int(start.Column), a.tabWidth) + 1

	endLine := int(end.Row) + 1
	endCol := lines.ExpandedColumn(endLine, int(end.Column), a.tabWidth)
	if end.Column == 0 && end.Row > start.Row {
		// node ends with a newline; report the end of the previous line
		endLine--
		endCol = lines.ExpandedColumn(endLine, len(lines.LineText(endLine)), a.tabWidth)
	}
	if endLine == beginLine && endCol < beginCol {
		endCol = beginCol
	}

	return domain.Violation{
		RuleID:      rule.ID,
		Description: rule.Message,
		File:        path,
		BeginLine:   beginLine,
		BeginColumn: beginCol,
		EndLine:     endLine,
		EndColumn:   endCol,
		Priority:    rule.Tier(),
	}
}
