package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/jsinspect/app"
	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/service"
)

// CheckExitError is a custom error type for check command exit codes
type CheckExitError struct {
	Code    int
	Message string
}

func (e *CheckExitError) Error() string {
	return e.Message
}

func checkCmd() *cobra.Command {
	var flags selectionFlags

	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Pre-commit check of JavaScript/TypeScript files",
		Long: `Analyze files and fail if any violation is found. Intended for pre-commit
hooks and CI pipelines. Every message carries the line it refers to.

Exit codes:
  0 - No violations
  1 - Violations found
  2 - Analysis error (configuration, unreadable file, analyzer failure)

Examples:
  # Check staged files
  jsinspect check $(git diff --cached --name-only)

  # Check a tree with the pre-commit rule set
  jsinspect check --rule-set pre-commit src/

  # JSON output for machine parsing
  jsinspect check --json src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, &flags)
		},
		SilenceUsage:  true, // Don't print usage on errors (we handle our own output)
		SilenceErrors: true, // Don't print error messages (we handle our own output)
	}

	flags.register(cmd, "text")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string, flags *selectionFlags) error {
	if len(args) == 0 {
		return &CheckExitError{Code: app.CheckErrors, Message: "no paths specified"}
	}

	env, err := setup(args[0], flags.overrides(), false)
	if err != nil {
		return &CheckExitError{Code: app.CheckErrors, Message: err.Error()}
	}
	defer env.Close()

	files, err := env.collect(args)
	if err != nil {
		return &CheckExitError{Code: app.CheckErrors, Message: fmt.Sprintf("failed to collect files: %v", err)}
	}
	if len(files) == 0 {
		return &CheckExitError{Code: app.CheckErrors, Message: "no JavaScript/TypeScript files found"}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := env.session.CheckBeforeCommit(ctx, files)
	if err != nil {
		if ctx.Err() != nil {
			err = context.Cause(ctx)
		}
		return &CheckExitError{Code: app.CheckErrors, Message: err.Error()}
	}

	formatter := service.NewOutputFormatter()
	if err := formatter.WriteCheck(result, domain.OutputFormat(env.cfg.Output.Format), cmd.OutOrStdout()); err != nil {
		return &CheckExitError{Code: app.CheckErrors, Message: fmt.Sprintf("failed to write result: %v", err)}
	}

	if result.ExitCode != app.CheckPassed {
		return &CheckExitError{Code: result.ExitCode}
	}
	return nil
}
