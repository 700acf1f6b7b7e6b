package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/jsinspect/app"
)

func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestAnalysisCommands_FlagsExist(t *testing.T) {
	commands := map[string]func() *cobra.Command{
		"run":   runCmd,
		"check": checkCmd,
		"watch": watchCmd,
	}
	expected := []string{"format", "json", "yaml", "rule-set", "disable", "jobs", "no-cache", "no-progress"}

	for name, build := range commands {
		t.Run(name, func(t *testing.T) {
			cmd := build()
			for _, flagName := range expected {
				assert.NotNil(t, cmd.Flags().Lookup(flagName), "missing flag --%s", flagName)
			}
			for _, short := range []string{"f", "r", "j"} {
				assert.NotNil(t, cmd.Flags().ShorthandLookup(short), "missing flag -%s", short)
			}
		})
	}

	assert.NotNil(t, runCmd().Flags().Lookup("output"))
	assert.NotNil(t, watchCmd().Flags().Lookup("metrics-addr"))
	assert.NotNil(t, watchCmd().Flags().Lookup("debounce"))
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "check", "watch", "rules", "init", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-file"))
}

func TestSelectionFlags_OutputFormat(t *testing.T) {
	tests := []struct {
		name  string
		flags selectionFlags
		want  string
	}{
		{"format flag", selectionFlags{format: "yaml"}, "yaml"},
		{"json shorthand", selectionFlags{format: "text", jsonOutput: true}, "json"},
		{"yaml shorthand", selectionFlags{format: "text", yamlOutput: true}, "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.flags.outputFormat())
			assert.Equal(t, tt.want, tt.flags.overrides().OutputFormat)
		})
	}
}

func TestCheckCmd_NoPathsError(t *testing.T) {
	cmd := checkCmd()
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	var exitErr *CheckExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, app.CheckErrors, exitErr.Code)
}

func TestCheckExitError_Error(t *testing.T) {
	err := &CheckExitError{Code: 1, Message: "test error"}
	assert.Equal(t, "test error", err.Error())
}

func TestCheckCmd_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		wantCode int
		wantOut  string
	}{
		{
			name:    "clean",
			files:   map[string]string{"clean.js": "let a = 1;\n"},
			wantOut: "Check passed",
		},
		{
			name:     "violation",
			files:    map[string]string{"debug.js": "let a = 1;\ndebugger;\n"},
			wantCode: app.CheckViolations,
			wantOut:  "(line 2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeSources(t, tt.files)
			var out bytes.Buffer
			cmd := checkCmd()
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"--no-progress", dir})

			err := cmd.Execute()
			if tt.wantCode == 0 {
				require.NoError(t, err)
			} else {
				var exitErr *CheckExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tt.wantCode, exitErr.Code)
			}
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestRunCmd_JSONReport(t *testing.T) {
	dir := writeSources(t, map[string]string{"a.js": "debugger;\n"})
	var out bytes.Buffer
	cmd := runCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json", "--no-progress", dir})
	require.NoError(t, cmd.Execute())

	var report struct {
		Summary string `json:"summary"`
		View    struct {
			Total int `json:"total"`
		} `json:"view"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 1, report.View.Total)
	assert.Equal(t, "1 Blockers, 0 Criticals, 0 Majors", report.Summary)
}

func TestRunCmd_NoPathsError(t *testing.T) {
	cmd := runCmd()
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}

func TestRulesCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := rulesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "no-eval")
	assert.Contains(t, out.String(), "pre-commit")
	assert.Contains(t, out.String(), "fix: strict-equality")

	out.Reset()
	cmd = rulesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--format", "json"})
	require.NoError(t, cmd.Execute())

	var listing rulesListing
	require.NoError(t, json.Unmarshal(out.Bytes(), &listing))
	assert.NotEmpty(t, listing.Rules)
	assert.NotEmpty(t, listing.RuleSets)
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "jsinspect version")

	out.Reset()
	cmd = versionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())
	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Contains(t, info, "go_version")

	flag := cmd.Flags().ShorthandLookup("v")
	require.NotNil(t, flag)
	assert.Equal(t, "verbose", flag.Name)
}
