package service

import (
	"slices"
	"sync"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/filelock"
)

// FileContext is the per-file coordination state: a timed reader/writer lock,
// the content version and the violations last published for the file.
type FileContext struct {
	Lock *filelock.RWLock

	mu        sync.Mutex
	version   uint64
	published map[string][]domain.Violation
}

func newFileContext(version uint64) *FileContext {
	return &FileContext{
		Lock:    filelock.New(),
		version: version,
	}
}

// Version returns the current content version
func (fc *FileContext) Version() uint64 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.version
}

func (fc *FileContext) setVersion(v uint64) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.version = v
	fc.published = nil
}

// Publish records the violations computed at version as shown for the file,
// grouped by rule. It reports false when they equal what was last published
// or when the content changed after version.
func (fc *FileContext) Publish(version uint64, violations []domain.Violation) bool {
	next := groupByRule(violations)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if version < fc.version {
		return false
	}
	if fc.published != nil && sameGroups(fc.published, next) {
		return false
	}
	fc.published = next
	return true
}

// ResetPublished forgets the last published violations, forcing the next
// Publish to report a change
func (fc *FileContext) ResetPublished() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.published = nil
}

func groupByRule(violations []domain.Violation) map[string][]domain.Violation {
	out := make(map[string][]domain.Violation)
	for _, v := range violations {
		out[v.RuleID] = append(out[v.RuleID], v)
	}
	return out
}

func sameGroups(a, b map[string][]domain.Violation) bool {
	if len(a) != len(b) {
		return false
	}
	for rule, va := range a {
		vb, ok := b[rule]
		if !ok || !slices.Equal(va, vb) {
			return false
		}
	}
	return true
}

// FileContexts is the registry of per-file contexts. Versions come from one
// clock shared by all files, so a context recreated after removal never
// reuses a version that was already invalidated.
type FileContexts struct {
	mu       sync.RWMutex
	clock    uint64
	contexts map[string]*FileContext
}

// NewFileContexts creates an empty registry
func NewFileContexts() *FileContexts {
	return &FileContexts{contexts: make(map[string]*FileContext)}
}

// Get returns the context of a file, creating it on first use
func (r *FileContexts) Get(path string) *FileContext {
	r.mu.RLock()
	fc, ok := r.contexts[path]
	r.mu.RUnlock()
	if ok {
		return fc
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if fc, ok := r.contexts[path]; ok {
		return fc
	}
	fc = newFileContext(r.clock)
	r.contexts[path] = fc
	return fc
}

// Lookup returns the context of a file without creating it
func (r *FileContexts) Lookup(path string) (*FileContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fc, ok := r.contexts[path]
	return fc, ok
}

// Bump advances the content version of a file and returns it
func (r *FileContexts) Bump(path string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock++
	fc, ok := r.contexts[path]
	if !ok {
		fc = newFileContext(r.clock)
		r.contexts[path] = fc
	}
	fc.setVersion(r.clock)
	return r.clock
}

// Remove drops the context of a file and returns the version that
// invalidates everything computed before the removal
func (r *FileContexts) Remove(path string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock++
	delete(r.contexts, path)
	return r.clock
}

// ResetAllPublished forgets the published violations of every file
func (r *FileContexts) ResetAllPublished() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, fc := range r.contexts {
		fc.ResetPublished()
	}
}

// Len returns the number of tracked files
func (r *FileContexts) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contexts)
}
