// Package testutil provides fakes of the host and analyzer interfaces for
// testing jsinspect components
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ludo-technologies/jsinspect/domain"
)

// FakeAnalyzer implements domain.Analyzer with canned results and call counting
type FakeAnalyzer struct {
	mu       sync.Mutex
	calls    map[string]int
	results  map[string][]domain.Violation
	errs     map[string]error
	problems map[string][]domain.ProcessingError

	// ResultFunc, when set, computes the result instead of the canned maps
	ResultFunc func(path string, source []byte, rs domain.RuleSet) ([]domain.Violation, error)

	// Started receives the path of every call when non-nil
	Started chan string
	// Gate blocks every call until it is closed or the context ends
	Gate chan struct{}
}

// NewFakeAnalyzer creates an analyzer that reports no violations
func NewFakeAnalyzer() *FakeAnalyzer {
	return &FakeAnalyzer{
		calls:    make(map[string]int),
		results:  make(map[string][]domain.Violation),
		errs:     make(map[string]error),
		problems: make(map[string][]domain.ProcessingError),
	}
}

// SetResult sets the violations reported for a file
func (f *FakeAnalyzer) SetResult(path string, violations ...domain.Violation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[path] = violations
}

// SetError makes analysis of a file fail
func (f *FakeAnalyzer) SetError(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[path] = err
}

// SetProblems sets the processing errors reported for a file
func (f *FakeAnalyzer) SetProblems(path string, problems ...domain.ProcessingError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.problems[path] = problems
}

// Calls returns how often a file was analyzed
func (f *FakeAnalyzer) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// TotalCalls returns the number of analyzer invocations
func (f *FakeAnalyzer) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Analyze implements domain.Analyzer
func (f *FakeAnalyzer) Analyze(ctx context.Context, path string, source []byte, rs domain.RuleSet) ([]domain.Violation, []domain.ProcessingError, error) {
	f.mu.Lock()
	f.calls[path]++
	result, err, problems := f.results[path], f.errs[path], f.problems[path]
	f.mu.Unlock()

	if f.Started != nil {
		select {
		case f.Started <- path:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	if f.ResultFunc != nil {
		result, err = f.ResultFunc(path, source, rs)
	}
	if err != nil {
		return nil, nil, err
	}
	out := make([]domain.Violation, len(result))
	for i, v := range result {
		if v.File == "" {
			v.File = path
		}
		out[i] = v
	}
	return out, problems, nil
}

// MemorySource implements domain.ContentSource and domain.ContentWriter in memory
type MemorySource struct {
	mu     sync.RWMutex
	files  map[string][]byte
	reads  map[string]int
	writes map[string]int
}

// NewMemorySource creates a source holding the given files
func NewMemorySource(files map[string]string) *MemorySource {
	s := &MemorySource{
		files:  make(map[string][]byte),
		reads:  make(map[string]int),
		writes: make(map[string]int),
	}
	for path, content := range files {
		s.files[path] = []byte(content)
	}
	return s
}

// Set replaces the content of a file
func (s *MemorySource) Set(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = []byte(content)
}

// Delete removes a file
func (s *MemorySource) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

// Content returns the content of a file
func (s *MemorySource) Content(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.files[path])
}

// Reads returns how often a file was read
func (s *MemorySource) Reads(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads[path]
}

// Writes returns how often a file was written
func (s *MemorySource) Writes(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[path]
}

// ReadContent implements domain.ContentSource
func (s *MemorySource) ReadContent(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[path]++
	content, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, os.ErrNotExist)
	}
	return append([]byte(nil), content...), nil
}

// WriteContent implements domain.ContentWriter
func (s *MemorySource) WriteContent(path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[path]++
	s.files[path] = append([]byte(nil), content...)
	return nil
}

// RecordingSink implements domain.MarkerSink and domain.AnalysisListener,
// keeping the markers currently shown per file
type RecordingSink struct {
	mu       sync.Mutex
	markers  map[string][]domain.Marker
	creates  int
	deletes  int
	analyzed int
	cleared  int
}

// NewRecordingSink creates an empty sink
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{markers: make(map[string][]domain.Marker)}
}

// CreateMarkers implements domain.MarkerSink
func (s *RecordingSink) CreateMarkers(path string, markers []domain.Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	s.markers[path] = append(s.markers[path], markers...)
	return nil
}

// DeleteMarkers implements domain.MarkerSink
func (s *RecordingSink) DeleteMarkers(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.markers, path)
	return nil
}

// FileAnalyzed implements domain.AnalysisListener
func (s *RecordingSink) FileAnalyzed(string, []domain.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzed++
}

// FileCleared implements domain.AnalysisListener
func (s *RecordingSink) FileCleared(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
}

// Markers returns the markers shown for a file
func (s *RecordingSink) Markers(path string) []domain.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Marker(nil), s.markers[path]...)
}

// Creates returns the number of CreateMarkers calls
func (s *RecordingSink) Creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// Analyzed returns the number of FileAnalyzed notifications
func (s *RecordingSink) Analyzed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzed
}

// Cleared returns the number of FileCleared notifications
func (s *RecordingSink) Cleared() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

// Violation builds a single-line violation for tests
func Violation(rule string, line, beginCol, endCol int, priority domain.Priority) domain.Violation {
	return domain.Violation{
		RuleID:      rule,
		Description: rule + " violated",
		BeginLine:   line,
		BeginColumn: beginCol,
		EndLine:     line,
		EndColumn:   endCol,
		Priority:    priority,
	}
}
