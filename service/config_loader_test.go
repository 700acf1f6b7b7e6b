package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/config"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfigurationLoader_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, ".jsinspect.yaml", `
cache:
  on_the_fly:
    expire_ms: 2500
analysis:
  lock_wait_ms: 80
rules:
  rule_set: security
`)

	cfg, err := NewConfigurationLoader().LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2500, cfg.Cache.OnTheFly.ExpireMs)
	assert.True(t, cfg.Cache.OnTheFly.Enabled, "unset keys keep their defaults")
	assert.Equal(t, 80, cfg.Analysis.LockWaitMs)
	assert.Equal(t, "security", cfg.Rules.RuleSet)
}

func TestConfigurationLoader_LoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.yaml")},
		{"invalid value", writeConfigFile(t, dir, "bad.yaml", "analysis:\n  tab_width: 0\n")},
		{"malformed yaml", writeConfigFile(t, dir, "broken.yaml", "cache: [\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigurationLoader().LoadConfig(tt.path)
			require.Error(t, err)
			var cfgErr *domain.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestConfigurationLoader_LoadForTarget(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, ".jsinspect.yaml", "rules:\n  rule_set: pre-commit\n")
	nested := filepath.Join(root, "src", "app")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	loader := NewConfigurationLoader()
	cfg, err := loader.LoadForTarget("", nested)
	require.NoError(t, err)
	assert.Equal(t, "pre-commit", cfg.Rules.RuleSet)

	assert.Equal(t, filepath.Join(root, ".jsinspect.yaml"), loader.FindDefaultConfigFile(nested))
}

func TestConfigurationLoader_MergeConfig(t *testing.T) {
	base := config.DefaultConfig()
	base.Rules.Disabled = []string{"no-console"}

	merged := NewConfigurationLoader().MergeConfig(base, ConfigOverrides{
		OutputFormat:  "json",
		RuleSet:       "security",
		Disabled:      []string{"no-var"},
		MaxGoroutines: 16,
		LogLevel:      "debug",
		NoCache:       true,
		NoProgress:    true,
		MetricsAddr:   ":9090",
	})

	assert.Equal(t, "json", merged.Output.Format)
	assert.Equal(t, "security", merged.Rules.RuleSet)
	assert.Equal(t, []string{"no-console", "no-var"}, merged.Rules.Disabled)
	assert.Equal(t, 16, merged.Performance.MaxGoroutines)
	assert.Equal(t, "debug", merged.Log.Level)
	assert.False(t, merged.Cache.OnTheFly.Enabled)
	assert.False(t, merged.Cache.Explicit.Enabled)
	assert.False(t, merged.Cache.Rule.Enabled)
	assert.False(t, merged.Output.ShowProgress)
	assert.Equal(t, ":9090", merged.Metrics.Addr)

	assert.Equal(t, []string{"no-console"}, base.Rules.Disabled, "base is not modified")
	assert.True(t, base.Cache.OnTheFly.Enabled)
}

func TestConfigurationLoader_MergeConfigEmptyOverrides(t *testing.T) {
	base := config.DefaultConfig()
	merged := NewConfigurationLoader().MergeConfig(base, ConfigOverrides{})
	assert.Equal(t, base, merged)
}

func TestConfigurationLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "jsinspect.yaml", "output:\n  format: yaml\n")
	loader := NewConfigurationLoader()

	cfg, err := loader.Load(path, dir, ConfigOverrides{RuleSet: "all"})
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, "all", cfg.Rules.RuleSet)

	_, err = loader.Load(path, dir, ConfigOverrides{OutputFormat: "html"})
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "output.format")
}
