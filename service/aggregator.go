package service

import (
	"sort"
	"sync"

	"github.com/ludo-technologies/jsinspect/domain"
)

// Aggregator holds the markers published per file and renders them as a
// Level -> Rule -> File tree. It is safe for concurrent use.
type Aggregator struct {
	mu    sync.RWMutex
	order []string
	files map[string][]domain.Marker
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{files: make(map[string][]domain.Marker)}
}

// UpdateFile replaces the markers of a file. An empty slice removes the file.
func (a *Aggregator) UpdateFile(file string, markers []domain.Marker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(markers) == 0 {
		a.removeLocked(file)
		return
	}
	if _, ok := a.files[file]; !ok {
		a.order = append(a.order, file)
	}
	a.files[file] = append([]domain.Marker(nil), markers...)
}

// RemoveFile drops every marker of a file. It reports whether the file was known.
func (a *Aggregator) RemoveFile(file string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removeLocked(file)
}

func (a *Aggregator) removeLocked(file string) bool {
	if _, ok := a.files[file]; !ok {
		return false
	}
	delete(a.files, file)
	for i, f := range a.order {
		if f == file {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

// Marker looks up a marker by ID
func (a *Aggregator) Marker(id string) (domain.Marker, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, file := range a.order {
		for _, m := range a.files[file] {
			if m.ID == id {
				return m, true
			}
		}
	}
	return domain.Marker{}, false
}

// RemoveMarker removes one marker, dropping its file when it was the last one
func (a *Aggregator) RemoveMarker(id string) (domain.Marker, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, file := range a.order {
		markers := a.files[file]
		for i, m := range markers {
			if m.ID != id {
				continue
			}
			rest := make([]domain.Marker, 0, len(markers)-1)
			rest = append(rest, markers[:i]...)
			rest = append(rest, markers[i+1:]...)
			if len(rest) == 0 {
				a.removeLocked(file)
			} else {
				a.files[file] = rest
			}
			return m, true
		}
	}
	return domain.Marker{}, false
}

// Markers returns the markers of a file
func (a *Aggregator) Markers(file string) []domain.Marker {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]domain.Marker(nil), a.files[file]...)
}

// Files returns the files with markers in order of first publication
func (a *Aggregator) Files() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Clear drops everything and returns the files that had markers
func (a *Aggregator) Clear() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	cleared := a.order
	a.order = nil
	a.files = make(map[string][]domain.Marker)
	return cleared
}

// View builds the tree from the current markers
func (a *Aggregator) View() domain.AggregatedView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Aggregate(a.order, a.files)
}

// Summary renders "N Blockers, N Criticals, N Majors"
func (a *Aggregator) Summary() string {
	return a.View().Summary()
}

// Aggregate builds the Level -> Rule -> File tree. Levels follow priority
// order; rules and files appear in the order they are first met walking
// files in the given order. Counts are derived from children.
func Aggregate(order []string, files map[string][]domain.Marker) domain.AggregatedView {
	type ruleAcc struct {
		rule  string
		order []string
		files map[string][]domain.Marker
	}
	type levelAcc struct {
		order []string
		rules map[string]*ruleAcc
	}

	levels := make(map[domain.Priority]*levelAcc)
	for _, file := range order {
		for _, m := range files[file] {
			p := m.Violation.Tier()
			lvl, ok := levels[p]
			if !ok {
				lvl = &levelAcc{rules: make(map[string]*ruleAcc)}
				levels[p] = lvl
			}
			r, ok := lvl.rules[m.Violation.RuleID]
			if !ok {
				r = &ruleAcc{rule: m.Violation.RuleID, files: make(map[string][]domain.Marker)}
				lvl.rules[r.rule] = r
				lvl.order = append(lvl.order, r.rule)
			}
			if _, ok := r.files[file]; !ok {
				r.order = append(r.order, file)
			}
			r.files[file] = append(r.files[file], m)
		}
	}

	var view domain.AggregatedView
	for _, p := range domain.Priorities {
		lvl, ok := levels[p]
		if !ok {
			continue
		}
		node := domain.LevelNode{Level: p, Title: p.String()}
		for _, id := range lvl.order {
			r := lvl.rules[id]
			ruleNode := domain.RuleNode{Rule: id}
			for _, file := range r.order {
				markers := r.files[file]
				ruleNode.Files = append(ruleNode.Files, domain.FileNode{
					File:    file,
					Count:   len(markers),
					Markers: markers,
				})
				ruleNode.Count += len(markers)
			}
			node.Rules = append(node.Rules, ruleNode)
			node.Count += ruleNode.Count
		}
		view.Levels = append(view.Levels, node)
		view.Total += node.Count
	}
	return view
}

// AggregateFiles builds the tree for a one-shot result, walking files in
// path order
func AggregateFiles(files map[string][]domain.Marker) domain.AggregatedView {
	order := make([]string, 0, len(files))
	for f := range files {
		order = append(order, f)
	}
	sort.Strings(order)
	return Aggregate(order, files)
}
