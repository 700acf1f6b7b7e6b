package domain

// ProgressManager creates progress trackers for long-running work
type ProgressManager interface {
	// StartTask starts tracking a task with a known total
	StartTask(description string, total int) TaskProgress

	// IsInteractive reports whether progress is rendered to a terminal
	IsInteractive() bool

	// Close finishes all tasks
	Close()
}

// TaskProgress tracks one task
type TaskProgress interface {
	Increment(n int)
	Describe(description string)
	Complete()
}
