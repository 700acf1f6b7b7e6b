package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/cache"
	"github.com/ludo-technologies/jsinspect/internal/config"
	"github.com/ludo-technologies/jsinspect/internal/logging"
	"github.com/ludo-technologies/jsinspect/internal/metrics"
	"github.com/ludo-technologies/jsinspect/internal/position"
	"github.com/ludo-technologies/jsinspect/internal/rules"
	"github.com/ludo-technologies/jsinspect/internal/version"
	"github.com/ludo-technologies/jsinspect/service"
)

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithMetrics sets the Prometheus metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithContentSource sets where file content is read from. If the source also
// implements domain.ContentWriter, quick fixes are written back through it.
func WithContentSource(source domain.ContentSource) Option {
	return func(s *Session) { s.source = source }
}

// WithMarkerSink sets the host marker sink
func WithMarkerSink(sink domain.MarkerSink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithListener adds an analysis listener
func WithListener(l domain.AnalysisListener) Option {
	return func(s *Session) { s.listeners = append(s.listeners, l) }
}

// WithQuickFixes sets the quick-fix provider
func WithQuickFixes(p domain.QuickFixProvider) Option {
	return func(s *Session) { s.quickFixes = p }
}

// WithProgress sets the progress manager used by batch runs
func WithProgress(pm domain.ProgressManager) Option {
	return func(s *Session) { s.progress = pm }
}

// WithRuleSet overrides the rule set named in the configuration
func WithRuleSet(rs domain.RuleSet) Option {
	return func(s *Session) { s.ruleSet = &rs }
}

// WithRegistry sets the rule registry used to resolve rule sets and
// line-level rules
func WithRegistry(r *rules.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// Session owns the caches, file contexts, coordinator and aggregator of one
// host session. It is safe for concurrent use.
type Session struct {
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	source     domain.ContentSource
	sink       domain.MarkerSink
	listeners  []domain.AnalysisListener
	quickFixes domain.QuickFixProvider
	progress   domain.ProgressManager
	registry   *rules.Registry
	ruleSet    *domain.RuleSet
	tabWidth   int

	tiers       *cache.Tiers
	files       *service.FileContexts
	coordinator *service.Coordinator
	batch       *service.BatchRunner
	aggregator  *service.Aggregator

	// publishMu serializes marker publication to the host
	publishMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

// NewSession creates a session analyzing with analyzer under cfg
func NewSession(cfg *config.Config, analyzer domain.Analyzer, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.NewConfigError("invalid configuration", err)
	}

	s := &Session{tabWidth: cfg.Analysis.TabWidth}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.source == nil {
		s.source = NewFileSystem()
	}
	if s.progress == nil {
		s.progress = &service.NoOpProgressManager{}
	}
	if s.registry == nil {
		r, err := rules.Default()
		if err != nil {
			return nil, err
		}
		s.registry = r
	}

	if s.ruleSet == nil {
		rs, err := s.resolveRuleSet(cfg.Rules)
		if err != nil {
			return nil, err
		}
		s.ruleSet = &rs
	}

	s.tiers = cache.NewTiers(tierOptions(cfg.Cache.OnTheFly), tierOptions(cfg.Cache.Explicit), tierOptions(cfg.Cache.Rule), s.metrics)
	s.files = service.NewFileContexts()
	s.coordinator = service.NewCoordinator(analyzer, s.source, s.tiers, s.files, coordinatorOptions(cfg.Analysis), s.logger, s.metrics)
	s.batch = service.NewBatchRunner(s.coordinator, service.NewParallelExecutor(&cfg.Performance, s.progress), s.logger, s.metrics)
	s.aggregator = service.NewAggregator()

	s.logger.WithFields(logrus.Fields{
		"rule_set":  s.ruleSet.Identity(),
		"rules":     len(s.ruleSet.Rules),
		"tab_width": s.tabWidth,
	}).Debug("session started")
	return s, nil
}

func (s *Session) resolveRuleSet(rc config.RulesConfig) (domain.RuleSet, error) {
	rs, err := s.registry.RuleSet(rc.RuleSet)
	if err != nil {
		return domain.RuleSet{}, domain.NewConfigError("unknown rule set", err)
	}
	return rs.Without(rc.Disabled), nil
}

func tierOptions(t config.TierConfig) cache.Options {
	return cache.Options{Enabled: t.Enabled, MaxEntries: t.MaxEntries, TTL: t.Expiry()}
}

func coordinatorOptions(a config.AnalysisConfig) service.CoordinatorOptions {
	return service.CoordinatorOptions{
		LockWait:         a.LockWait(),
		MaxOnTheFlyLines: a.MaxOnTheFlyLines,
		SkipGenerated:    a.SkipGenerated,
	}
}

func (s *Session) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	return nil
}

func (s *Session) currentRuleSet() domain.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.ruleSet
}

// RuleSet returns the rule set the session analyzes with
func (s *Session) RuleSet() domain.RuleSet {
	return s.currentRuleSet()
}

// AnalyzeOnTheFly analyzes a file after an edit and publishes the markers.
// A busy file is skipped silently: (nil, nil) is returned and the next edit
// retries.
func (s *Session) AnalyzeOnTheFly(ctx context.Context, path string) ([]domain.Marker, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	res, err := s.coordinator.Analyze(ctx, path, s.currentRuleSet(), domain.ModeOnTheFly)
	if errors.Is(err, domain.ErrBusy) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if res.Skipped {
		return s.aggregator.Markers(path), nil
	}
	return s.publish(path, res), nil
}

// AnalyzeRule runs a single rule on a file. Results come from the rule-level
// cache and are not published.
func (s *Session) AnalyzeRule(ctx context.Context, path, ruleID string) ([]domain.Marker, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	res, err := s.coordinator.AnalyzeRule(ctx, path, ruleID, domain.ModeExplicit)
	if err != nil {
		return nil, err
	}
	return s.resolve(res), nil
}

// maxRefreshAttempts bounds how often RefreshFile reanalyzes a file whose
// content keeps changing under it
const maxRefreshAttempts = 3

// RefreshFile drops everything cached for a file, reanalyzes it and
// republishes its markers
func (s *Session) RefreshFile(ctx context.Context, path string) ([]domain.Marker, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.invalidate(path)

	var res service.Result
	for attempt := 1; ; attempt++ {
		var err error
		res, err = s.coordinator.Analyze(ctx, path, s.currentRuleSet(), domain.ModeExplicit)
		if err != nil {
			return nil, err
		}
		if !s.stale(path, res) || attempt == maxRefreshAttempts {
			break
		}
		s.logger.WithFields(logrus.Fields{"file": path, "attempt": attempt}).Debug("file changed during refresh, reanalyzing")
	}
	return s.publish(path, res), nil
}

// RunBatch analyzes files explicitly and publishes each file's markers as it
// completes. On cancellation the partial result is returned with ctx.Err().
func (s *Session) RunBatch(ctx context.Context, paths []string) (*service.BatchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.batch.Run(ctx, paths, s.currentRuleSet(), func(path string, res service.Result) {
		s.publish(path, res)
	})
}

// Check exit codes
const (
	CheckPassed     = 0
	CheckViolations = 1
	CheckErrors     = 2
)

// CheckBeforeCommit analyzes files explicitly and reports whether any
// violation exists. Messages carry a "(line N)" suffix.
func (s *Session) CheckBeforeCommit(ctx context.Context, paths []string) (*domain.CheckResult, error) {
	start := time.Now()
	batch, err := s.RunBatch(ctx, paths)
	if err != nil {
		return nil, err
	}

	result := &domain.CheckResult{
		Violations:  []domain.CheckViolation{},
		GeneratedAt: time.Now().Format(time.RFC3339),
		Version:     version.Version,
	}

	var all []domain.Violation
	for _, file := range batch.Files() {
		all = append(all, batch.Results[file]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].File != all[j].File {
			return all[i].File < all[j].File
		}
		if all[i].BeginLine != all[j].BeginLine {
			return all[i].BeginLine < all[j].BeginLine
		}
		return all[i].BeginColumn < all[j].BeginColumn
	})

	for _, v := range all {
		result.Violations = append(result.Violations, domain.CheckViolation{
			Rule:     v.RuleID,
			Severity: v.Tier().String(),
			Message:  v.MessageWithLine(),
			Location: fmt.Sprintf("%s:%d:%d", v.File, v.BeginLine, v.BeginColumn),
		})
		switch v.Tier() {
		case domain.PriorityBlocker:
			result.Summary.Blockers++
		case domain.PriorityCritical:
			result.Summary.Criticals++
		default:
			result.Summary.Majors++
		}
	}
	for _, f := range batch.Failures {
		result.Failures = append(result.Failures, domain.CheckFailure{File: f.Path, Error: f.Err.Error()})
	}

	result.Summary.FilesAnalyzed = batch.Completed
	result.Summary.FilesFailed = len(batch.Failures)
	result.Summary.TotalViolations = len(all)
	result.Summary.Text = fmt.Sprintf("%d %s, %d %s, %d %s",
		result.Summary.Blockers, domain.PriorityBlocker.Plural(),
		result.Summary.Criticals, domain.PriorityCritical.Plural(),
		result.Summary.Majors, domain.PriorityMajor.Plural())

	switch {
	case len(result.Violations) > 0:
		result.ExitCode = CheckViolations
	case len(result.Failures) > 0:
		result.ExitCode = CheckErrors
	default:
		result.ExitCode = CheckPassed
	}
	result.Passed = result.ExitCode == CheckPassed
	result.Duration = time.Since(start).Milliseconds()
	return result, nil
}

// HandleEvent applies a host file event. A change invalidates the file's
// cache entries and leaves its markers shown until the next analysis; they
// can no longer be fixed. A delete or move also drops its context and markers.
func (s *Session) HandleEvent(event domain.FileEvent) {
	if s.checkOpen() != nil {
		return
	}
	log := s.logger.WithFields(logrus.Fields{"file": event.Path, "event": event.Kind.String()})

	switch event.Kind {
	case domain.FileDeleted, domain.FileMoved:
		s.tiers.InvalidateFile(event.Path, s.files.Remove(event.Path))
		s.unpublish(event.Path)
		log.Debug("file removed from session")
	default:
		s.invalidate(event.Path)
		log.Debug("file invalidated")
	}
}

func (s *Session) invalidate(path string) {
	s.tiers.InvalidateFile(path, s.files.Bump(path))
}

// ApplyQuickFix rewrites the file of a marker to resolve it. The marker must
// have been resolved against the current content, otherwise
// domain.ErrStaleMarker is returned and nothing is written. The file is then
// reanalyzed and its markers replaced.
func (s *Session) ApplyQuickFix(ctx context.Context, markerID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	marker, ok := s.aggregator.Marker(markerID)
	if !ok {
		return domain.ErrMarkerNotFound
	}
	if s.quickFixes == nil || !s.quickFixes.CanFix(marker.Violation.RuleID) {
		return fmt.Errorf("%s: %w", marker.Violation.RuleID, domain.ErrNoQuickFix)
	}
	writer, ok := s.source.(domain.ContentWriter)
	if !ok {
		return fmt.Errorf("content source is read-only: %w", domain.ErrNoQuickFix)
	}

	path := marker.Violation.File
	fc, ok := s.files.Lookup(path)
	if !ok {
		return domain.ErrStaleMarker
	}
	if err := fc.Lock.Lock(ctx); err != nil {
		return err
	}
	err := s.rewrite(fc, marker, writer)
	fc.Lock.Unlock()
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"file": path,
		"rule": marker.Violation.RuleID,
		"line": marker.Violation.BeginLine,
	}).Info("quick fix applied")

	s.publishMu.Lock()
	s.aggregator.RemoveMarker(markerID)
	s.publishMu.Unlock()

	res, err := s.coordinator.Analyze(ctx, path, s.currentRuleSet(), domain.ModeExplicit)
	if err != nil {
		s.logger.WithError(err).WithField("file", path).Warn("reanalysis after quick fix failed")
		s.unpublish(path)
		return nil
	}
	s.publish(path, res)
	return nil
}

// rewrite applies the fix of marker and invalidates the file. The caller
// holds the file lock.
func (s *Session) rewrite(fc *service.FileContext, marker domain.Marker, writer domain.ContentWriter) error {
	if marker.Version < fc.Version() {
		return domain.ErrStaleMarker
	}
	path := marker.Violation.File
	source, err := s.source.ReadContent(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	fixed, err := s.quickFixes.Fix(source, marker)
	if err != nil {
		return err
	}
	if err := writer.WriteContent(path, fixed); err != nil {
		return err
	}
	s.invalidate(path)
	return nil
}

// ClearAll removes every marker and empties the caches
func (s *Session) ClearAll() {
	s.tiers.InvalidateAll()
	s.files.ResetAllPublished()

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	for _, path := range s.aggregator.Clear() {
		s.notifyCleared(path)
	}
}

// AggregatedView returns the Level -> Rule -> File tree of current markers
func (s *Session) AggregatedView() domain.AggregatedView {
	return s.aggregator.View()
}

// Summary renders "N Blockers, N Criticals, N Majors"
func (s *Session) Summary() string {
	return s.aggregator.Summary()
}

// Reconfigure applies new cache and analysis settings. Cached results are
// dropped; published markers stay. Tab width is fixed for the session.
func (s *Session) Reconfigure(cfg *config.Config) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return domain.NewConfigError("invalid configuration", err)
	}

	rs, err := s.resolveRuleSet(cfg.Rules)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ruleSet = &rs
	s.mu.Unlock()

	s.tiers.OnTheFly.Reconfigure(tierOptions(cfg.Cache.OnTheFly))
	s.tiers.Explicit.Reconfigure(tierOptions(cfg.Cache.Explicit))
	s.tiers.Rule.Reconfigure(tierOptions(cfg.Cache.Rule))
	s.coordinator.SetOptions(coordinatorOptions(cfg.Analysis))
	s.batch.Configure(&cfg.Performance)
	s.files.ResetAllPublished()

	s.logger.WithField("rule_set", rs.Identity()).Info("session reconfigured")
	return nil
}

// Close ends the session. Later calls return domain.ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.tiers.InvalidateAll()
	s.progress.Close()
	s.logger.Debug("session closed")
	return nil
}

// resolve maps the violations of a result to ranges in the source they were
// computed from. Ranges that cannot be resolved become file-level markers.
func (s *Session) resolve(res service.Result) []domain.Marker {
	if len(res.Violations) == 0 {
		return nil
	}

	lines := position.NewLineIndex(string(res.Source))
	markers := make([]domain.Marker, 0, len(res.Violations))
	for _, v := range res.Violations {
		var r domain.DocumentRange
		if s.registry.IsLineLevel(v.RuleID) {
			r = lines.ResolveLines(v.BeginLine, v.EndLine)
		} else {
			r = lines.Resolve(v.BeginLine, v.BeginColumn, v.EndLine, v.EndColumn, s.tabWidth)
		}
		markers = append(markers, domain.Marker{
			ID:        uuid.NewString(),
			Violation: v,
			Range:     r,
			FileLevel: r.IsUnknown(),
			Version:   res.Version,
		})
	}
	return markers
}

// stale reports whether the file changed or went away after res was computed
func (s *Session) stale(path string, res service.Result) bool {
	fc, ok := s.files.Lookup(path)
	return !ok || res.Version < fc.Version()
}

// publish shows the violations of a result unless they equal what is already
// shown or the file changed since they were computed, and returns the file's
// current markers
func (s *Session) publish(path string, res service.Result) []domain.Marker {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	fc, ok := s.files.Lookup(path)
	if !ok || !fc.Publish(res.Version, res.Violations) {
		if ok && res.Version < fc.Version() {
			s.logger.WithField("file", path).Debug("dropping result of replaced content")
		}
		return s.aggregator.Markers(path)
	}

	markers := s.resolve(res)
	s.aggregator.UpdateFile(path, markers)
	s.show(path, markers)
	return markers
}

func (s *Session) unpublish(path string) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if s.aggregator.RemoveFile(path) {
		s.notifyCleared(path)
	}
}

// show replaces the host markers of a file. The caller holds publishMu.
func (s *Session) show(path string, markers []domain.Marker) {
	if len(markers) == 0 {
		s.notifyCleared(path)
		return
	}
	if s.sink != nil {
		if err := s.sink.DeleteMarkers(path); err != nil {
			s.logger.WithError(err).WithField("file", path).Warn("failed to delete markers")
		}
		if err := s.sink.CreateMarkers(path, markers); err != nil {
			s.logger.WithError(err).WithField("file", path).Warn("failed to create markers")
		}
	}
	for _, l := range s.listeners {
		l.FileAnalyzed(path, markers)
	}
}

// notifyCleared removes the host markers of a file. The caller holds publishMu.
func (s *Session) notifyCleared(path string) {
	if s.sink != nil {
		if err := s.sink.DeleteMarkers(path); err != nil {
			s.logger.WithError(err).WithField("file", path).Warn("failed to delete markers")
		}
	}
	for _, l := range s.listeners {
		l.FileCleared(path)
	}
}
