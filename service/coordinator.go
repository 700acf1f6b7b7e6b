package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/cache"
	"github.com/ludo-technologies/jsinspect/internal/constants"
	"github.com/ludo-technologies/jsinspect/internal/metrics"
)

// Default coordinator settings
const (
	DefaultLockWait         = 50 * time.Millisecond
	DefaultMaxOnTheFlyLines = 3000
)

// CoordinatorOptions tunes the coordinator
type CoordinatorOptions struct {
	// LockWait bounds how long on-the-fly requests wait for a file lock
	LockWait time.Duration
	// MaxOnTheFlyLines skips on-the-fly analysis of larger files (0 = no limit)
	MaxOnTheFlyLines int
	// SkipGenerated skips files marked @generated
	SkipGenerated bool
}

// DefaultCoordinatorOptions returns the default options
func DefaultCoordinatorOptions() CoordinatorOptions {
	return CoordinatorOptions{
		LockWait:         DefaultLockWait,
		MaxOnTheFlyLines: DefaultMaxOnTheFlyLines,
		SkipGenerated:    true,
	}
}

// Coordinator serves analysis requests from the cache tiers and runs the
// analyzer at most once per file at a time.
type Coordinator struct {
	analyzer domain.Analyzer
	source   domain.ContentSource
	tiers    *cache.Tiers
	files    *FileContexts
	logger   *logrus.Logger
	metrics  *metrics.Metrics

	mu   sync.RWMutex
	opts CoordinatorOptions
}

// NewCoordinator creates a coordinator
func NewCoordinator(analyzer domain.Analyzer, source domain.ContentSource, tiers *cache.Tiers, files *FileContexts,
	opts CoordinatorOptions, logger *logrus.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		analyzer: analyzer,
		source:   source,
		tiers:    tiers,
		files:    files,
		opts:     opts,
		logger:   logger,
		metrics:  m,
	}
}

// Options returns the current options
func (c *Coordinator) Options() CoordinatorOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// SetOptions replaces the options used by subsequent requests
func (c *Coordinator) SetOptions(opts CoordinatorOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// Result is the outcome of one analysis request. Source is the exact content
// the violations were computed from and Version its content version; ranges
// must be resolved against Source, never against a later read.
type Result struct {
	Violations []domain.Violation
	Source     []byte
	Version    uint64
	// Skipped is set when on-the-fly analysis passed over a large file
	Skipped bool
}

// Analyze returns the violations of a file for a rule set.
//
// The mode's tier is consulted first. On a miss the file's read lock is
// taken and the tier rechecked, then the write lock, a final recheck and the
// analyzer call. The result is stored in both file tiers stamped with the
// content version read before the analyzer ran.
//
// On-the-fly requests wait at most LockWait for each lock and return
// domain.ErrBusy on timeout. Analyzer failures return *domain.AnalysisError
// and are not cached. A cancelled ctx returns ctx.Err() and caches nothing.
func (c *Coordinator) Analyze(ctx context.Context, path string, rs domain.RuleSet, mode domain.Mode) (Result, error) {
	return c.analyze(ctx, path, rs, mode, domain.KeyFor(path, rs), c.tiers.For(mode), c.tiers.OnTheFly, c.tiers.Explicit)
}

// AnalyzeRule returns the violations of a single rule, served from the rule tier
func (c *Coordinator) AnalyzeRule(ctx context.Context, path, ruleID string, mode domain.Mode) (Result, error) {
	key := domain.CacheKey{Path: path, Scope: domain.ScopeForRule(ruleID)}
	return c.analyze(ctx, path, domain.SingleRule(ruleID), mode, key, c.tiers.Rule, c.tiers.Rule)
}

func (c *Coordinator) analyze(ctx context.Context, path string, rs domain.RuleSet, mode domain.Mode,
	key domain.CacheKey, tier *cache.ViolationCache, store ...*cache.ViolationCache) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if res, ok := c.cached(tier, key, mode); ok {
		return res, nil
	}

	fc := c.files.Get(path)

	if err := c.acquire(ctx, mode, fc.Lock.RLock); err != nil {
		return Result{}, c.lockFailed(path, mode, err)
	}
	res, ok := c.cached(tier, key, mode)
	fc.Lock.RUnlock()
	if ok {
		return res, nil
	}

	start := time.Now()
	if err := c.acquire(ctx, mode, fc.Lock.Lock); err != nil {
		return Result{}, c.lockFailed(path, mode, err)
	}
	defer fc.Lock.Unlock()
	if mode == domain.ModeExplicit {
		c.logger.WithFields(logrus.Fields{
			"file":    path,
			"elapsed": time.Since(start),
		}).Debug("acquired file write lock")
	}

	if res, ok := c.cached(tier, key, mode); ok {
		return res, nil
	}
	return c.compute(ctx, path, rs, mode, key, fc, store)
}

func (c *Coordinator) cached(tier *cache.ViolationCache, key domain.CacheKey, mode domain.Mode) (Result, bool) {
	entry, ok := tier.Lookup(key)
	if !ok {
		return Result{}, false
	}
	c.metrics.Analysis(mode.String(), metrics.StatusCached)
	return Result{Violations: entry.Violations, Source: entry.Source, Version: entry.Version}, true
}

// acquire takes a lock, bounding the wait for on-the-fly requests
func (c *Coordinator) acquire(ctx context.Context, mode domain.Mode, lock func(context.Context) error) error {
	if mode == domain.ModeExplicit {
		return lock(ctx)
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.Options().LockWait)
	defer cancel()
	if err := lock(waitCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.ErrBusy
	}
	return nil
}

func (c *Coordinator) lockFailed(path string, mode domain.Mode, err error) error {
	if errors.Is(err, domain.ErrBusy) {
		c.metrics.Analysis(mode.String(), metrics.StatusBusy)
		c.logger.WithField("file", path).Debug("file busy, skipping on-the-fly analysis")
	} else {
		c.metrics.Analysis(mode.String(), metrics.StatusCancelled)
	}
	return err
}

// compute runs the analyzer. The caller holds the file write lock.
func (c *Coordinator) compute(ctx context.Context, path string, rs domain.RuleSet, mode domain.Mode,
	key domain.CacheKey, fc *FileContext, store []*cache.ViolationCache) (Result, error) {
	log := c.logger.WithFields(logrus.Fields{
		"file":  path,
		"scope": key.Scope,
		"mode":  mode.String(),
	})

	opts := c.Options()
	version, release := c.tiers.Track(fc.Version)
	defer release()
	source, err := c.source.ReadContent(path)
	if err != nil {
		log.WithError(err).Warn("failed to read file content")
		c.metrics.Analysis(mode.String(), metrics.StatusFailed)
		return Result{}, &domain.AnalysisError{Path: path, Err: err}
	}

	if mode == domain.ModeOnTheFly && opts.MaxOnTheFlyLines > 0 && lineCount(source) > opts.MaxOnTheFlyLines {
		log.Debug("file too large for on-the-fly analysis")
		c.metrics.Analysis(mode.String(), metrics.StatusSkipped)
		return Result{Version: version, Skipped: true}, nil
	}

	var violations []domain.Violation
	if opts.SkipGenerated && IsGenerated(source) {
		log.Debug("skipping generated file")
	} else {
		start := time.Now()
		var problems []domain.ProcessingError
		violations, problems, err = c.analyzer.Analyze(ctx, path, source, rs)
		c.metrics.AnalyzerDuration(mode.String(), time.Since(start))

		if ctxErr := ctx.Err(); ctxErr != nil {
			c.metrics.Analysis(mode.String(), metrics.StatusCancelled)
			return Result{}, ctxErr
		}
		if err != nil {
			log.WithError(err).Error("analysis failed")
			c.metrics.Analysis(mode.String(), metrics.StatusFailed)
			return Result{}, &domain.AnalysisError{Path: path, Err: err}
		}
		for _, p := range problems {
			log.WithField("line", p.Line).Warn(p.Message)
		}
		if len(violations) == 0 && len(problems) > 0 {
			c.metrics.Analysis(mode.String(), metrics.StatusFailed)
			return Result{}, &domain.AnalysisError{Path: path, Err: problems[0]}
		}
	}

	entry := cache.Entry{Violations: violations, Source: source, Version: version}
	stored := false
	for _, tier := range store {
		if tier.Store(key, entry) {
			stored = true
		}
	}
	if !stored && version < fc.Version() {
		log.WithField("version", version).Debug("content changed during analysis")
	}
	c.metrics.Analysis(mode.String(), metrics.StatusOK)
	log.WithField("violations", len(violations)).Debug("analysis complete")
	return Result{Violations: violations, Source: source, Version: version}, nil
}

func lineCount(source []byte) int {
	n := bytes.Count(source, []byte("\n"))
	if len(source) > 0 && source[len(source)-1] != '\n' {
		n++
	}
	return n
}

// IsGenerated reports whether the file header carries the generated marker
func IsGenerated(source []byte) bool {
	header := source[:min(len(source), constants.GeneratedHeaderBytes)]
	return bytes.Contains(header, []byte(constants.GeneratedMarker))
}
