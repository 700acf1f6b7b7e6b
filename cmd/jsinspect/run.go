package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/service"
)

func runCmd() *cobra.Command {
	var flags selectionFlags
	var outputPath string

	cmd := &cobra.Command{
		Use:   "run [path...]",
		Short: "Inspect JavaScript/TypeScript files",
		Long: `Analyze files and print the violations grouped by severity, rule and file.

Examples:
  jsinspect run src/
  jsinspect run --rule-set security src/
  jsinspect run --json -o report.json src/
  jsinspect run --disable no-console,no-var src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspection(cmd, args, &flags, outputPath)
		},
	}

	flags.register(cmd, "text")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "",
		"Write the report to a file instead of stdout")
	return cmd
}

func runInspection(cmd *cobra.Command, args []string, flags *selectionFlags, outputPath string) error {
	if len(args) == 0 {
		return fmt.Errorf("no paths specified")
	}

	env, err := setup(args[0], flags.overrides(), false)
	if err != nil {
		return err
	}
	defer env.Close()

	files, err := env.collect(args)
	if err != nil {
		return fmt.Errorf("failed to collect files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no JavaScript/TypeScript files found")
	}

	format := domain.OutputFormat(env.cfg.Output.Format)
	if format == domain.OutputFormatText && outputPath == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Analyzing %d files...\n", len(files))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	result, runErr := env.session.RunBatch(ctx, files)
	if runErr != nil && result == nil {
		return runErr
	}
	if runErr != nil {
		// Cancelled: report what was analyzed
		env.logger.WithError(runErr).Warnf("analysis stopped after %d of %d files", result.Completed, result.Total)
	}

	failures := make([]domain.CheckFailure, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, domain.CheckFailure{File: f.Path, Error: f.Err.Error()})
	}
	report := service.NewViewReport(env.session.AggregatedView(), time.Since(startTime), failures)

	var out io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer file.Close()
		out = file
	}

	if err := service.NewOutputFormatter().WriteView(report, format, out); err != nil {
		return err
	}
	if outputPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to: %s\n", outputPath)
	}
	return runErr
}
