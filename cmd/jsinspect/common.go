package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ludo-technologies/jsinspect/app"
	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/analyzer"
	"github.com/ludo-technologies/jsinspect/internal/config"
	"github.com/ludo-technologies/jsinspect/internal/logging"
	"github.com/ludo-technologies/jsinspect/internal/metrics"
	"github.com/ludo-technologies/jsinspect/internal/quickfix"
	"github.com/ludo-technologies/jsinspect/internal/rules"
	"github.com/ludo-technologies/jsinspect/service"
)

// Global flags shared by every command
var (
	configPath string
	logLevel   string
	logFile    string
)

// selectionFlags are the rule and output flags of the analysis commands
type selectionFlags struct {
	format        string
	jsonOutput    bool
	yamlOutput    bool
	ruleSet       string
	disabled      []string
	maxGoroutines int
	noCache       bool
	noProgress    bool
}

func (f *selectionFlags) register(cmd *cobra.Command, defaultFormat string) {
	cmd.Flags().StringVarP(&f.format, "format", "f", defaultFormat,
		"Output format: text, json, yaml")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false,
		"Output results as JSON (shorthand for --format json)")
	cmd.Flags().BoolVar(&f.yamlOutput, "yaml", false,
		"Output results as YAML (shorthand for --format yaml)")
	cmd.Flags().StringVarP(&f.ruleSet, "rule-set", "r", "",
		"Rule set to run (see 'jsinspect rules')")
	cmd.Flags().StringSliceVar(&f.disabled, "disable", nil,
		"Rules to disable (comma-separated)")
	cmd.Flags().IntVarP(&f.maxGoroutines, "jobs", "j", 0,
		"Files analyzed in parallel (default from config)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false,
		"Disable result caching")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false,
		"Disable the progress bar")
}

func (f *selectionFlags) outputFormat() string {
	switch {
	case f.jsonOutput:
		return string(domain.OutputFormatJSON)
	case f.yamlOutput:
		return string(domain.OutputFormatYAML)
	default:
		return f.format
	}
}

func (f *selectionFlags) overrides() service.ConfigOverrides {
	return service.ConfigOverrides{
		OutputFormat:  f.outputFormat(),
		RuleSet:       f.ruleSet,
		Disabled:      f.disabled,
		MaxGoroutines: f.maxGoroutines,
		LogLevel:      logLevel,
		LogFile:       logFile,
		NoCache:       f.noCache,
		NoProgress:    f.noProgress,
	}
}

// environment is everything a command needs to drive a session
type environment struct {
	cfg      *config.Config
	logger   *logrus.Logger
	registry *rules.Registry
	session  *app.Session
	metrics  *metrics.Metrics
	promReg  *prometheus.Registry
}

func (e *environment) Close() {
	if e.session != nil {
		_ = e.session.Close()
	}
}

// collect returns the files below paths selected by the configuration
func (e *environment) collect(paths []string) ([]string, error) {
	return app.NewFileHelper().CollectJSFiles(paths, app.CollectOptions{
		Recursive:        e.cfg.Analysis.Recursive,
		IncludePatterns:  e.cfg.Analysis.IncludePatterns,
		ExcludePatterns:  e.cfg.Analysis.ExcludePatterns,
		RespectGitignore: e.cfg.Analysis.RespectGitignore,
	})
}

// setup loads the configuration that applies to target and opens a session
func setup(target string, overrides service.ConfigOverrides, withMetrics bool, opts ...app.Option) (*environment, error) {
	cfg, err := service.NewConfigurationLoader().Load(configPath, target, overrides)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	registry, err := rules.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load bundled rules: %w", err)
	}

	env := &environment{cfg: cfg, logger: logger, registry: registry}
	if withMetrics {
		env.promReg = prometheus.NewRegistry()
		env.metrics = metrics.NewMetrics(env.promReg)
	}

	showProgress := cfg.Output.ShowProgress && cfg.Output.Format == string(domain.OutputFormatText)
	all := append([]app.Option{
		app.WithLogger(logger),
		app.WithMetrics(env.metrics),
		app.WithRegistry(registry),
		app.WithQuickFixes(quickfix.New(registry)),
		app.WithProgress(service.NewProgressManager(showProgress)),
	}, opts...)

	env.session, err = app.NewSession(cfg, analyzer.New(registry, cfg.Analysis.TabWidth), all...)
	if err != nil {
		return nil, err
	}
	return env, nil
}

func firstOrDot(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}
