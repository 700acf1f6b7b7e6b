// Package filelock provides a reader/writer lock whose acquisition honors a
// context, so callers can bound how long they wait.
package filelock

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// maxReaders is the semaphore capacity. A writer takes all of it.
const maxReaders = 1 << 30

// RWLock is a context-aware reader/writer lock. Waiting writers block newly
// arriving readers, so a writer is not starved by a stream of readers.
type RWLock struct {
	sem *semaphore.Weighted
}

// New creates an unlocked RWLock
func New() *RWLock {
	return &RWLock{sem: semaphore.NewWeighted(maxReaders)}
}

// RLock acquires a read lock, waiting until ctx is done
func (l *RWLock) RLock(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// TryRLock acquires a read lock without waiting
func (l *RWLock) TryRLock() bool {
	return l.sem.TryAcquire(1)
}

// RUnlock releases a read lock
func (l *RWLock) RUnlock() {
	l.sem.Release(1)
}

// Lock acquires the write lock, waiting until ctx is done
func (l *RWLock) Lock(ctx context.Context) error {
	return l.sem.Acquire(ctx, maxReaders)
}

// TryLock acquires the write lock without waiting
func (l *RWLock) TryLock() bool {
	return l.sem.TryAcquire(maxReaders)
}

// Unlock releases the write lock
func (l *RWLock) Unlock() {
	l.sem.Release(maxReaders)
}
