package domain

import (
	"context"
	"strings"
)

// Mode selects the cache tier and locking behavior of an analysis request
type Mode int

const (
	// ModeOnTheFly is triggered by edits; it never blocks for long
	ModeOnTheFly Mode = iota
	// ModeExplicit is triggered by a user command, a batch or a pre-commit check
	ModeExplicit
)

// String returns the mode name used in logs and metrics
func (m Mode) String() string {
	if m == ModeExplicit {
		return "explicit"
	}
	return "on_the_fly"
}

// RuleSet names the rules an analysis runs
type RuleSet struct {
	Name  string   `json:"name,omitempty" yaml:"name,omitempty"`
	Rules []string `json:"rules" yaml:"rules"`
}

// Identity returns the cache scope of the rule set
func (rs RuleSet) Identity() string {
	if rs.Name != "" {
		return rs.Name
	}
	return strings.Join(rs.Rules, ",")
}

// Without returns a copy of the rule set with the given rules removed
func (rs RuleSet) Without(disabled []string) RuleSet {
	if len(disabled) == 0 {
		return rs
	}
	skip := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		skip[id] = true
	}
	out := RuleSet{Name: rs.Name}
	for _, id := range rs.Rules {
		if !skip[id] {
			out.Rules = append(out.Rules, id)
		}
	}
	if out.Name != "" {
		out.Name += "-" + strings.Join(disabled, "-")
	}
	return out
}

// SingleRule returns a rule set containing one rule, used by the rule-level cache
func SingleRule(ruleID string) RuleSet {
	return RuleSet{Rules: []string{ruleID}}
}

// ScopeForRule is the cache scope of a single-rule request
func ScopeForRule(ruleID string) string {
	return "rule:" + ruleID
}

// CacheKey identifies a cached analysis result
type CacheKey struct {
	Path  string
	Scope string
}

// KeyFor builds the cache key of a file analyzed with a rule set
func KeyFor(path string, rs RuleSet) CacheKey {
	return CacheKey{Path: path, Scope: rs.Identity()}
}

// Analyzer is the rule engine. Implementations must be safe for concurrent use.
type Analyzer interface {
	Analyze(ctx context.Context, path string, source []byte, rs RuleSet) ([]Violation, []ProcessingError, error)
}

// ContentSource supplies the current content of a file
type ContentSource interface {
	ReadContent(path string) ([]byte, error)
}

// ContentWriter persists rewritten file content
type ContentWriter interface {
	WriteContent(path string, content []byte) error
}

// FileEventKind is the kind of a host file event
type FileEventKind int

const (
	FileChanged FileEventKind = iota
	FileDeleted
	FileMoved
)

// String returns the event kind name
func (k FileEventKind) String() string {
	switch k {
	case FileDeleted:
		return "deleted"
	case FileMoved:
		return "moved"
	default:
		return "changed"
	}
}

// FileEvent is a change notification for a file
type FileEvent struct {
	Path string
	Kind FileEventKind
}

// MarkerSink receives the markers published for a file
type MarkerSink interface {
	CreateMarkers(path string, markers []Marker) error
	DeleteMarkers(path string) error
}

// AnalysisListener is notified when the published violations of a file change
type AnalysisListener interface {
	FileAnalyzed(path string, markers []Marker)
	FileCleared(path string)
}

// QuickFixProvider rewrites source text to resolve a marker
type QuickFixProvider interface {
	CanFix(ruleID string) bool
	Fix(source []byte, marker Marker) ([]byte, error)
}
