package domain

import "fmt"

// Priority is the severity tier reported by a rule. Lower values are more severe.
type Priority int

const (
	PriorityBlocker  Priority = 1
	PriorityCritical Priority = 2
	PriorityMajor    Priority = 3
)

// Priorities lists the tiers in display order
var Priorities = []Priority{PriorityBlocker, PriorityCritical, PriorityMajor}

// PriorityOf maps a raw analyzer priority to a tier. Anything outside 1..3 is Major.
func PriorityOf(p int) Priority {
	switch Priority(p) {
	case PriorityBlocker, PriorityCritical, PriorityMajor:
		return Priority(p)
	default:
		return PriorityMajor
	}
}

// String returns the display title of the tier
func (p Priority) String() string {
	switch PriorityOf(int(p)) {
	case PriorityBlocker:
		return "Blocker"
	case PriorityCritical:
		return "Critical"
	default:
		return "Major"
	}
}

// Plural returns the plural display title used in summaries
func (p Priority) Plural() string {
	return p.String() + "s"
}

// Violation is a single rule finding reported by the analyzer.
// Lines and columns are 1-based; columns are tab-expanded.
type Violation struct {
	RuleID      string   `json:"rule" yaml:"rule"`
	Description string   `json:"description" yaml:"description"`
	File        string   `json:"file" yaml:"file"`
	BeginLine   int      `json:"begin_line" yaml:"begin_line"`
	BeginColumn int      `json:"begin_column" yaml:"begin_column"`
	EndLine     int      `json:"end_line" yaml:"end_line"`
	EndColumn   int      `json:"end_column" yaml:"end_column"`
	Priority    Priority `json:"priority" yaml:"priority"`
}

// Tier returns the normalized severity tier of the violation
func (v Violation) Tier() Priority {
	return PriorityOf(int(v.Priority))
}

// MessageWithLine returns the description suffixed with the begin line, as
// shown for explicitly requested analyses.
func (v Violation) MessageWithLine() string {
	return fmt.Sprintf("%s (line %d)", v.Description, v.BeginLine)
}

// ProcessingError is a non-fatal problem the analyzer hit while processing a file
type ProcessingError struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// Error implements the error interface
func (e ProcessingError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// DocumentRange is a half-open byte range [Start, End) into a document
type DocumentRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// IsUnknown reports whether the range is the (0,0) "position unknown" marker
func (r DocumentRange) IsUnknown() bool {
	return r.Start == 0 && r.End == 0
}

// Len returns the number of bytes covered by the range
func (r DocumentRange) Len() int {
	return r.End - r.Start
}

// Marker is a violation bound to a resolved document range
type Marker struct {
	ID        string        `json:"id" yaml:"id"`
	Violation Violation     `json:"violation" yaml:"violation"`
	Range     DocumentRange `json:"range" yaml:"range"`
	// FileLevel is set when the position could not be resolved
	FileLevel bool `json:"file_level,omitempty" yaml:"file_level,omitempty"`
	// Version is the content version the range was resolved against
	Version uint64 `json:"version" yaml:"version"`
}
