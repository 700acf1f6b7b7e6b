package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/config"
	"github.com/ludo-technologies/jsinspect/internal/metrics"
)

// BatchResult is the outcome of one explicit run over a set of files
type BatchResult struct {
	RunID     string
	Results   map[string][]domain.Violation
	Failures  []*domain.AnalysisError
	Total     int
	Completed int
	Skipped   int
	Duration  time.Duration
}

// Files returns the analyzed files in path order
func (r *BatchResult) Files() []string {
	files := make([]string, 0, len(r.Results))
	for f := range r.Results {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// ViolationCount returns the number of violations over all files
func (r *BatchResult) ViolationCount() int {
	n := 0
	for _, vs := range r.Results {
		n += len(vs)
	}
	return n
}

// FileCallback receives the result of each file as soon as it completes
type FileCallback func(path string, res Result)

// BatchRunner runs explicit analysis over many files. Only one batch runs at
// a time; a second Run waits for the first to finish.
type BatchRunner struct {
	coordinator *Coordinator
	executor    *ParallelExecutor
	gate        *semaphore.Weighted
	logger      *logrus.Logger
	metrics     *metrics.Metrics
}

// NewBatchRunner creates a batch runner
func NewBatchRunner(coordinator *Coordinator, executor *ParallelExecutor, logger *logrus.Logger, m *metrics.Metrics) *BatchRunner {
	return &BatchRunner{
		coordinator: coordinator,
		executor:    executor,
		gate:        semaphore.NewWeighted(1),
		logger:      logger,
		metrics:     m,
	}
}

// Configure applies new performance settings to later batches
func (b *BatchRunner) Configure(cfg *config.PerformanceConfig) {
	b.executor.Configure(cfg)
}

// Run analyzes paths with the rule set. Per-file failures are collected in
// BatchResult.Failures. When ctx is cancelled no further files start and the
// results completed so far are returned together with ctx.Err().
func (b *BatchRunner) Run(ctx context.Context, paths []string, rs domain.RuleSet, onFile FileCallback) (*BatchResult, error) {
	if err := b.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.gate.Release(1)
	defer b.metrics.BatchStarted()()

	result := &BatchResult{
		RunID:   uuid.NewString(),
		Results: make(map[string][]domain.Violation, len(paths)),
		Total:   len(paths),
	}
	log := b.logger.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"files":    len(paths),
		"rule_set": rs.Identity(),
	})
	log.Info("starting batch analysis")

	var mu sync.Mutex
	jobs := make([]FileJob, 0, len(paths))
	for _, path := range paths {
		path := path
		jobs = append(jobs, FileJob{
			Path: path,
			Run: func(ctx context.Context) error {
				res, err := b.coordinator.Analyze(ctx, path, rs, domain.ModeExplicit)
				if err != nil {
					var analysisErr *domain.AnalysisError
					if errors.As(err, &analysisErr) {
						b.metrics.BatchFile(metrics.StatusFailed)
						mu.Lock()
						result.Failures = append(result.Failures, analysisErr)
						mu.Unlock()
					} else {
						b.metrics.BatchFile(metrics.StatusCancelled)
					}
					return err
				}

				b.metrics.BatchFile(metrics.StatusOK)
				mu.Lock()
				result.Results[path] = res.Violations
				result.Completed++
				mu.Unlock()
				if onFile != nil {
					onFile(path, res)
				}
				return nil
			},
		})
	}

	start := time.Now()
	stats, err := b.executor.Run(ctx, "Analyzing", jobs)
	result.Duration = time.Since(start)
	result.Skipped = stats.Skipped

	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Path < result.Failures[j].Path
	})

	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"completed": result.Completed,
			"skipped":   result.Skipped,
		}).Warn("batch analysis interrupted")
		return result, err
	}

	log.WithFields(logrus.Fields{
		"completed":  result.Completed,
		"failed":     len(result.Failures),
		"violations": result.ViolationCount(),
		"elapsed":    result.Duration,
	}).Info("batch analysis complete")
	return result, nil
}
