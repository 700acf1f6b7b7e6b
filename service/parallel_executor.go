package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/config"
)

// Default values for the parallel executor, used when the configured value
// is not positive
const (
	DefaultMaxConcurrency = 4
	DefaultTimeout        = 5 * time.Minute
)

// FileJob is the work for one file of a batch
type FileJob struct {
	Path string
	Run  func(ctx context.Context) error
}

// ExecutionStats counts what one Run did
type ExecutionStats struct {
	Scheduled int
	Completed int
	Failed    int
	Skipped   int
}

// ParallelExecutor runs file jobs on a bounded errgroup. The limits can be
// changed between runs.
type ParallelExecutor struct {
	progress domain.ProgressManager

	mu             sync.RWMutex
	maxConcurrency int
	timeout        time.Duration
}

// NewParallelExecutor creates an executor from the performance settings.
// pm may be nil.
func NewParallelExecutor(cfg *config.PerformanceConfig, pm domain.ProgressManager) *ParallelExecutor {
	e := &ParallelExecutor{progress: pm}
	e.Configure(cfg)
	return e
}

// Configure applies new performance settings to subsequent runs
func (e *ParallelExecutor) Configure(cfg *config.PerformanceConfig) {
	maxConcurrency := cfg.MaxGoroutines
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxConcurrency = maxConcurrency
	e.timeout = timeout
}

func (e *ParallelExecutor) limits() (int, time.Duration) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.maxConcurrency, e.timeout
}

// Run executes jobs under description and reports what happened. A failing
// job does not stop the others; failures are only counted, the job itself
// records what went wrong. Once ctx is cancelled or the timeout expires no
// further job starts and Run returns the context error.
func (e *ParallelExecutor) Run(ctx context.Context, description string, jobs []FileJob) (ExecutionStats, error) {
	var stats ExecutionStats
	if len(jobs) == 0 {
		return stats, nil
	}

	maxConcurrency, timeout := e.limits()
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var task domain.TaskProgress = &NoOpTaskProgress{}
	if e.progress != nil {
		task = e.progress.StartTask(description, len(jobs))
	}
	defer task.Complete()

	g, gCtx := errgroup.WithContext(timeoutCtx)
	g.SetLimit(maxConcurrency)

	var mu sync.Mutex
	for i, job := range jobs {
		job := job
		mu.Lock()
		if gCtx.Err() != nil {
			stats.Skipped += len(jobs) - i
			mu.Unlock()
			break
		}
		stats.Scheduled++
		mu.Unlock()

		g.Go(func() error {
			if gCtx.Err() != nil {
				mu.Lock()
				stats.Skipped++
				mu.Unlock()
				return nil
			}

			err := job.Run(gCtx)
			task.Describe(job.Path)
			task.Increment(1)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
			} else {
				stats.Completed++
			}
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if timeoutCtx.Err() != nil {
		return stats, fmt.Errorf("execution timed out after %v: %w", timeout, context.DeadlineExceeded)
	}
	return stats, nil
}
