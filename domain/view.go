package domain

import (
	"fmt"
	"strings"
)

// AggregatedView is the Level -> Rule -> File tree of published markers.
// Counts are derived from children.
type AggregatedView struct {
	Levels []LevelNode `json:"levels" yaml:"levels"`
	Total  int         `json:"total" yaml:"total"`
}

// LevelNode groups rules of one severity tier
type LevelNode struct {
	Level Priority   `json:"level" yaml:"level"`
	Title string     `json:"title" yaml:"title"`
	Count int        `json:"count" yaml:"count"`
	Rules []RuleNode `json:"rules" yaml:"rules"`
}

// RuleNode groups files that violate one rule
type RuleNode struct {
	Rule  string     `json:"rule" yaml:"rule"`
	Count int        `json:"count" yaml:"count"`
	Files []FileNode `json:"files" yaml:"files"`
}

// FileNode lists the markers of one rule in one file
type FileNode struct {
	File    string   `json:"file" yaml:"file"`
	Count   int      `json:"count" yaml:"count"`
	Markers []Marker `json:"markers" yaml:"markers"`
}

// Level returns the node of a tier, if it has any markers
func (v AggregatedView) Level(p Priority) (LevelNode, bool) {
	for _, l := range v.Levels {
		if l.Level == p {
			return l, true
		}
	}
	return LevelNode{}, false
}

// CountOf returns the marker count of a tier
func (v AggregatedView) CountOf(p Priority) int {
	l, _ := v.Level(p)
	return l.Count
}

// Summary renders "N Blockers, N Criticals, N Majors"
func (v AggregatedView) Summary() string {
	parts := make([]string, 0, len(Priorities))
	for _, p := range Priorities {
		parts = append(parts, fmt.Sprintf("%d %s", v.CountOf(p), p.Plural()))
	}
	return strings.Join(parts, ", ")
}
