package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ludo-technologies/jsinspect/app"
	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/metrics"
	"github.com/ludo-technologies/jsinspect/internal/watch"
)

func watchCmd() *cobra.Command {
	var flags selectionFlags
	var metricsAddr string
	var debounce time.Duration
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Inspect files continuously as they change",
		Long: `Watch a directory and re-inspect JavaScript/TypeScript files as they are
edited. Changed files are analyzed on the fly; a file that is still being
analyzed is skipped and picked up by its next change.

Examples:
  jsinspect watch src/
  jsinspect watch --metrics-addr :9090 .`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, firstOrDot(args), &flags, metricsAddr, debounce, skipInitial)
		},
	}

	flags.register(cmd, "text")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce,
		"Quiet period before a changed file is analyzed")
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false,
		"Do not inspect the whole tree at startup")
	return cmd
}

// consoleListener prints marker changes as they are published
type consoleListener struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *consoleListener) FileAnalyzed(path string, markers []domain.Marker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s (%d)\n", path, len(markers))
	for _, m := range markers {
		fmt.Fprintf(l.w, "  %d:%d  [%s] %s: %s\n", m.Violation.BeginLine, m.Violation.BeginColumn,
			m.Violation.Tier(), m.Violation.RuleID, m.Violation.Description)
	}
}

func (l *consoleListener) FileCleared(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s: no violations\n", path)
}

func runWatch(cmd *cobra.Command, root string, flags *selectionFlags, metricsAddr string, debounce time.Duration, skipInitial bool) error {
	overrides := flags.overrides()
	overrides.NoProgress = true
	overrides.MetricsAddr = metricsAddr

	listener := &consoleListener{w: cmd.OutOrStdout()}
	env, err := setup(root, overrides, true, app.WithListener(listener))
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if env.cfg.Metrics.Addr != "" {
		server := serveMetrics(env)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if !skipInitial {
		files, err := env.collect([]string{root})
		if err != nil {
			return fmt.Errorf("failed to collect files: %w", err)
		}
		if _, err := env.session.RunBatch(ctx, files); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Summary: %s\n", env.session.Summary())
	}

	filter := app.NewFileFilter(env.cfg.Analysis.IncludePatterns, env.cfg.Analysis.ExcludePatterns)
	relative := func(path string) string {
		if rel, err := filepath.Rel(root, path); err == nil {
			return rel
		}
		return path
	}

	watcher, err := watch.New(watch.Options{
		Debounce: debounce,
		Include:  func(path string) bool { return filter.ShouldInclude(relative(path)) },
		SkipDir: func(path string) bool {
			return filepath.Base(path) == ".git" || filter.SkipDir(relative(path))
		},
	}, env.logger)
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(root); err != nil {
		return err
	}

	env.logger.WithField("root", root).Info("watching for changes")
	var wg sync.WaitGroup
	err = watcher.Run(ctx, func(event domain.FileEvent) {
		env.session.HandleEvent(event)
		if event.Kind != domain.FileChanged {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.session.AnalyzeOnTheFly(ctx, event.Path); err != nil && ctx.Err() == nil {
				env.logger.WithError(err).WithField("file", event.Path).Warn("analysis failed")
			}
		}()
	})
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveMetrics(env *environment) *http.Server {
	mux := http.NewServeMux()
	metrics.RegisterMetricsEndpoint(mux, env.promReg)
	server := &http.Server{
		Addr:              env.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.logger.WithError(err).Error("metrics server stopped")
		}
	}()
	env.logger.WithFields(logrus.Fields{"addr": env.cfg.Metrics.Addr}).Info("serving metrics")
	return server
}
