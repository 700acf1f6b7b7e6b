// Package quickfix rewrites source text to resolve individual markers
package quickfix

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/rules"
)

// Fixer rewrites the text of one marker range
type Fixer func(source []byte, r domain.DocumentRange) ([]byte, error)

// Fixers by the fix name used in the rule registry
var builtin = map[string]Fixer{
	"strict-equality":  strictEquality,
	"var-to-let":       varToLet,
	"delete-statement": deleteStatement,
	"delete-lines":     deleteLines,
}

type boundFix struct {
	fix Fixer
	// guard must match the marked text, nil to accept any
	guard *regexp.Regexp
}

// Registry implements domain.QuickFixProvider for the bundled rules
type Registry struct {
	fixers map[string]boundFix
}

// New binds the fixes named by registry rules to their implementations.
// A rule whose guard does not compile gets no fix.
func New(registry *rules.Registry) *Registry {
	r := &Registry{fixers: make(map[string]boundFix)}
	for _, rule := range registry.Rules() {
		fix, ok := builtin[rule.Fix]
		if !ok {
			continue
		}
		bound := boundFix{fix: fix}
		if rule.FixGuard != "" {
			guard, err := regexp.Compile(rule.FixGuard)
			if err != nil {
				continue
			}
			bound.guard = guard
		}
		r.fixers[rule.ID] = bound
	}
	return r
}

// CanFix reports whether a rule has a quick fix
func (r *Registry) CanFix(ruleID string) bool {
	_, ok := r.fixers[ruleID]
	return ok
}

// Fix applies the quick fix of the marker's rule and returns the new source
func (r *Registry) Fix(source []byte, marker domain.Marker) ([]byte, error) {
	bound, ok := r.fixers[marker.Violation.RuleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoQuickFix, marker.Violation.RuleID)
	}
	rng := marker.Range
	if marker.FileLevel || rng.IsUnknown() || rng.Start < 0 || rng.End > len(source) || rng.Start > rng.End {
		return nil, fmt.Errorf("%w: marker range %d..%d", domain.ErrFixNotApplicable, rng.Start, rng.End)
	}
	if bound.guard != nil && !bound.guard.Match(source[rng.Start:rng.End]) {
		return nil, fmt.Errorf("%w: marked text %q", domain.ErrFixNotApplicable, source[rng.Start:rng.End])
	}
	return bound.fix(source, rng)
}

func splice(source []byte, start, end int, replacement []byte) []byte {
	out := make([]byte, 0, len(source)-(end-start)+len(replacement))
	out = append(out, source[:start]...)
	out = append(out, replacement...)
	return append(out, source[end:]...)
}

func strictEquality(source []byte, r domain.DocumentRange) ([]byte, error) {
	switch op := string(source[r.Start:r.End]); op {
	case "==":
		return splice(source, r.Start, r.End, []byte("===")), nil
	case "!=":
		return splice(source, r.Start, r.End, []byte("!==")), nil
	default:
		return nil, fmt.Errorf("%w: expected == or !=, found %q", domain.ErrFixNotApplicable, op)
	}
}

func varToLet(source []byte, r domain.DocumentRange) ([]byte, error) {
	if !bytes.HasPrefix(source[r.Start:r.End], []byte("var")) {
		return nil, fmt.Errorf("%w: declaration does not start with var", domain.ErrFixNotApplicable)
	}
	return splice(source, r.Start, r.Start+len("var"), []byte("let")), nil
}

func deleteStatement(source []byte, r domain.DocumentRange) ([]byte, error) {
	if r.Len() == 0 {
		return nil, fmt.Errorf("%w: empty statement range", domain.ErrFixNotApplicable)
	}
	start, end := r.Start, r.End
	// drop the line too when the statement is alone on it
	lineStart := bytes.LastIndexByte(source[:start], '\n') + 1
	lineEnd := len(source)
	if i := bytes.IndexByte(source[end:], '\n'); i >= 0 {
		lineEnd = end + i
	}
	if len(bytes.TrimSpace(source[lineStart:start])) == 0 && len(bytes.TrimSpace(source[end:lineEnd])) == 0 {
		start = lineStart
		end = min(lineEnd+1, len(source))
	}
	return splice(source, start, end, nil), nil
}

func deleteLines(source []byte, r domain.DocumentRange) ([]byte, error) {
	end := r.End
	if end < len(source) && source[end] == '\n' {
		end++
	}
	return splice(source, r.Start, end, nil), nil
}
