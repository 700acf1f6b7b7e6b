package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NotNil(t, config)

	assert.True(t, config.Cache.OnTheFly.Enabled)
	assert.Equal(t, time.Second, config.Cache.OnTheFly.Expiry())
	assert.Equal(t, 10*time.Minute, config.Cache.Explicit.Expiry())
	assert.Equal(t, DefaultCacheMaxEntries, config.Cache.Explicit.MaxEntries)
	assert.Equal(t, DefaultRuleCacheMaxEntries, config.Cache.Rule.MaxEntries)

	assert.Equal(t, DefaultTabWidth, config.Analysis.TabWidth)
	assert.Equal(t, 50*time.Millisecond, config.Analysis.LockWait())
	assert.Equal(t, DefaultMaxOnTheFlyLines, config.Analysis.MaxOnTheFlyLines)
	assert.True(t, config.Analysis.SkipGenerated)
	assert.NotEmpty(t, config.Analysis.IncludePatterns)
	assert.NotEmpty(t, config.Analysis.ExcludePatterns)

	assert.Equal(t, DefaultRuleSet, config.Rules.RuleSet)
	assert.Equal(t, "text", config.Output.Format)
	assert.Equal(t, "info", config.Log.Level)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative expiry", func(c *Config) { c.Cache.OnTheFly.ExpireMs = -1 }, true},
		{"negative max entries", func(c *Config) { c.Cache.Explicit.MaxEntries = -5 }, true},
		{"unbounded cache", func(c *Config) { c.Cache.Rule.MaxEntries = 0 }, true},
		{"single entry cache", func(c *Config) { c.Cache.OnTheFly.MaxEntries = 1 }, false},
		{"zero tab width", func(c *Config) { c.Analysis.TabWidth = 0 }, true},
		{"huge tab width", func(c *Config) { c.Analysis.TabWidth = 64 }, true},
		{"negative lock wait", func(c *Config) { c.Analysis.LockWaitMs = -1 }, true},
		{"zero lock wait", func(c *Config) { c.Analysis.LockWaitMs = 0 }, false},
		{"negative line limit", func(c *Config) { c.Analysis.MaxOnTheFlyLines = -1 }, true},
		{"empty rule set", func(c *Config) { c.Rules.RuleSet = "" }, true},
		{"negative goroutines", func(c *Config) { c.Performance.MaxGoroutines = -1 }, true},
		{"xml output", func(c *Config) { c.Output.Format = "xml" }, true},
		{"yaml output", func(c *Config) { c.Output.Format = "yaml" }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"debug log level", func(c *Config) { c.Log.Level = "debug" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".jsinspect.yaml")
	content := `
cache:
  on_the_fly:
    expire_ms: 250
  explicit:
    enabled: false
analysis:
  tab_width: 4
rules:
  rule_set: security
  disabled: [no-with]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 250, config.Cache.OnTheFly.ExpireMs)
	assert.True(t, config.Cache.OnTheFly.Enabled, "unset keys keep their defaults")
	assert.False(t, config.Cache.Explicit.Enabled)
	assert.Equal(t, 4, config.Analysis.TabWidth)
	assert.Equal(t, "security", config.Rules.RuleSet)
	assert.Equal(t, []string{"no-with"}, config.Rules.Disabled)
	assert.Equal(t, DefaultLockWaitMs, config.Analysis.LockWaitMs)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsinspect.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  tab_width: 0\n"), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "tab_width")
}

func TestLoadConfig_NonExistent(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("JSINSPECT_ANALYSIS_TAB_WIDTH", "2")
	t.Setenv("JSINSPECT_CACHE_ON_THE_FLY_ENABLED", "false")

	config, err := LoadConfigWithTarget("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 2, config.Analysis.TabWidth)
	assert.False(t, config.Cache.OnTheFly.Enabled)
}

func TestLoadConfigWithTarget_DiscoversUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "components")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".jsinspect.yaml"), []byte("analysis:\n  tab_width: 3\n"), 0644))
	file := filepath.Join(nested, "Button.jsx")
	require.NoError(t, os.WriteFile(file, []byte("export {}\n"), 0644))

	config, err := LoadConfigWithTarget("", file)
	require.NoError(t, err)
	assert.Equal(t, 3, config.Analysis.TabWidth)
}

func TestSearchConfigInDirectory(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, searchConfigInDirectory(dir, []string{"a.yaml", "b.yaml"}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("{}"), 0644))
	assert.Equal(t, filepath.Join(dir, "b.yaml"), searchConfigInDirectory(dir, []string{"a.yaml", "b.yaml"}))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	config := DefaultConfig()
	config.Analysis.TabWidth = 2
	config.Rules.Disabled = []string{"no-var"}

	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Analysis.TabWidth)
	assert.Equal(t, []string{"no-var"}, loaded.Rules.Disabled)
}

func TestTemplates_AreValidConfig(t *testing.T) {
	dir := t.TempDir()
	templates := map[string]string{
		"full.yaml":     GetFullConfigTemplate(ProjectTypeReact, ResponsivenessSnappy, "security"),
		"thorough.yaml": GetFullConfigTemplate(ProjectTypeNodeBackend, ResponsivenessThorough, ""),
		"minimal.yaml":  GetMinimalConfigTemplate(),
	}

	for name, content := range templates {
		t.Run(name, func(t *testing.T) {
			var raw map[string]any
			require.NoError(t, yaml.Unmarshal([]byte(content), &raw))

			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := LoadConfig(path)
			assert.NoError(t, err)
		})
	}

	full, err := LoadConfig(filepath.Join(dir, "full.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 20, full.Analysis.LockWaitMs)
	assert.Equal(t, "security", full.Rules.RuleSet)
	assert.Contains(t, full.Analysis.ExcludePatterns, "**/.next/**")
}

func TestPresetsCoverAllChoices(t *testing.T) {
	projects := GetProjectPresets()
	for _, p := range []ProjectType{ProjectTypeGeneric, ProjectTypeReact, ProjectTypeNodeBackend} {
		assert.Contains(t, projects, p)
	}
	tuning := GetResponsivenessPresets()
	for _, r := range []Responsiveness{ResponsivenessBalanced, ResponsivenessSnappy, ResponsivenessThorough} {
		assert.Contains(t, tuning, r)
	}
}
