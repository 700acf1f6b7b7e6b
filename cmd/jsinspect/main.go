package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/jsinspect/internal/version"
	"github.com/ludo-technologies/jsinspect/service"
)

var (
	// Version information (set via ldflags during build)
	Version = version.Version
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Handle custom exit codes from check command
		var exitErr *CheckExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintf(os.Stderr, "Error: %s\n", exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jsinspect",
		Short: "jsinspect - incremental JavaScript/TypeScript inspections",
		Long: `jsinspect runs rule-based inspections on JavaScript and TypeScript code.
Results are cached per file and rule set, files are analyzed concurrently,
and violations are grouped by severity, rule and file.`,
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"Write logs to a rotated file")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				return service.WriteJSON(cmd.OutOrStdout(), version.Get())
			}
			if verbose {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersion())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "jsinspect version %s\n", version.GetVersion())
			}
			return nil
		},
	}

	cmd.Flags().BoolP("verbose", "v", false, "Show detailed version information")
	cmd.Flags().Bool("json", false, "Print build information as JSON")
	return cmd
}
