package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ludo-technologies/jsinspect/internal/constants"
)

// Default cache settings. On-the-fly results live briefly since they are
// recomputed on every edit; explicit results live until the file changes.
const (
	DefaultOnTheFlyExpireMs    = 1000
	DefaultExplicitExpireMs    = 10 * 60 * 1000
	DefaultRuleExpireMs        = 10 * 60 * 1000
	DefaultCacheMaxEntries     = 300
	DefaultRuleCacheMaxEntries = 500
)

// Default analysis settings
const (
	DefaultTabWidth         = 8
	DefaultLockWaitMs       = 50
	DefaultMaxOnTheFlyLines = 3000
	DefaultRuleSet          = "recommended"
)

// Default performance settings
const (
	DefaultMaxGoroutines  = 4
	DefaultTimeoutSeconds = 300
)

// Config represents the main configuration structure
type Config struct {
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Analysis    AnalysisConfig    `mapstructure:"analysis" yaml:"analysis"`
	Rules       RulesConfig       `mapstructure:"rules" yaml:"rules"`
	Performance PerformanceConfig `mapstructure:"performance" yaml:"performance"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// CacheConfig holds the settings of each cache tier
type CacheConfig struct {
	OnTheFly TierConfig `mapstructure:"on_the_fly" yaml:"on_the_fly"`
	Explicit TierConfig `mapstructure:"explicit" yaml:"explicit"`
	Rule     TierConfig `mapstructure:"rule" yaml:"rule"`
}

// TierConfig configures one cache tier
type TierConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	ExpireMs   int  `mapstructure:"expire_ms" yaml:"expire_ms"`
	MaxEntries int  `mapstructure:"max_entries" yaml:"max_entries"`
}

// Expiry returns the TTL of the tier
func (t TierConfig) Expiry() time.Duration {
	return time.Duration(t.ExpireMs) * time.Millisecond
}

// AnalysisConfig holds analysis behavior and file selection
type AnalysisConfig struct {
	// TabWidth is the column width of a tab in analyzer positions
	TabWidth int `mapstructure:"tab_width" yaml:"tab_width"`

	// LockWaitMs bounds how long an on-the-fly request waits for a busy file
	LockWaitMs int `mapstructure:"lock_wait_ms" yaml:"lock_wait_ms"`

	// MaxOnTheFlyLines skips on-the-fly analysis of larger files (0 = no limit)
	MaxOnTheFlyLines int `mapstructure:"max_on_the_fly_lines" yaml:"max_on_the_fly_lines"`

	// SkipGenerated skips files marked @generated
	SkipGenerated bool `mapstructure:"skip_generated" yaml:"skip_generated"`

	// File selection
	Recursive        bool     `mapstructure:"recursive" yaml:"recursive"`
	IncludePatterns  []string `mapstructure:"include_patterns" yaml:"include_patterns"`
	ExcludePatterns  []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	RespectGitignore bool     `mapstructure:"respect_gitignore" yaml:"respect_gitignore"`
}

// LockWait returns the bounded wait of on-the-fly requests
func (a AnalysisConfig) LockWait() time.Duration {
	return time.Duration(a.LockWaitMs) * time.Millisecond
}

// RulesConfig selects the rules to run
type RulesConfig struct {
	RuleSet  string   `mapstructure:"rule_set" yaml:"rule_set"`
	Disabled []string `mapstructure:"disabled" yaml:"disabled"`
}

// PerformanceConfig holds batch execution settings
type PerformanceConfig struct {
	MaxGoroutines  int `mapstructure:"max_goroutines" yaml:"max_goroutines"`
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// OutputConfig holds output formatting options
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format"`
	ShowProgress bool   `mapstructure:"show_progress" yaml:"show_progress"`
}

// LogConfig configures logging
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig configures the Prometheus endpoint of the watch command
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			OnTheFly: TierConfig{Enabled: true, ExpireMs: DefaultOnTheFlyExpireMs, MaxEntries: DefaultCacheMaxEntries},
			Explicit: TierConfig{Enabled: true, ExpireMs: DefaultExplicitExpireMs, MaxEntries: DefaultCacheMaxEntries},
			Rule:     TierConfig{Enabled: true, ExpireMs: DefaultRuleExpireMs, MaxEntries: DefaultRuleCacheMaxEntries},
		},
		Analysis: AnalysisConfig{
			TabWidth:         DefaultTabWidth,
			LockWaitMs:       DefaultLockWaitMs,
			MaxOnTheFlyLines: DefaultMaxOnTheFlyLines,
			SkipGenerated:    true,
			Recursive:        true,
			IncludePatterns:  []string{"**/*.js", "**/*.jsx", "**/*.mjs", "**/*.cjs", "**/*.ts", "**/*.tsx"},
			ExcludePatterns: []string{
				"**/node_modules/**",
				"**/dist/**",
				"**/build/**",
				"**/*.min.js",
			},
			RespectGitignore: true,
		},
		Rules: RulesConfig{
			RuleSet: DefaultRuleSet,
		},
		Performance: PerformanceConfig{
			MaxGoroutines:  DefaultMaxGoroutines,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Output: OutputConfig{
			Format:       "text",
			ShowProgress: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// LoadConfig loads configuration from file or returns default config
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWithTarget(configPath, "")
}

// LoadConfigWithTarget loads configuration with target path context.
// With no explicit path, a config file is searched upward from targetPath.
func LoadConfigWithTarget(configPath string, targetPath string) (*Config, error) {
	if configPath == "" {
		configPath = findDefaultConfig(targetPath)
	}
	return loadConfigFromFile(configPath)
}

// loadConfigFromFile reads and parses a configuration file. Environment
// variables prefixed with JSINSPECT_ override file values.
func loadConfigFromFile(configPath string) (*Config, error) {
	// Create a new viper instance to avoid race conditions
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(constants.EnvVarPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// searchConfigInDirectory searches for configuration files in a specific directory
func searchConfigInDirectory(dir string, candidates []string) string {
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// findDefaultConfig looks for configuration files from targetPath upward,
// then in the current directory and the user config directory
func findDefaultConfig(targetPath string) string {
	candidates := constants.ConfigFileCandidates

	if targetPath != "" {
		absPath, err := filepath.Abs(targetPath)
		if err == nil {
			if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
				absPath = filepath.Dir(absPath)
			}

			volume := filepath.VolumeName(absPath)
			for dir := absPath; ; dir = filepath.Dir(dir) {
				if config := searchConfigInDirectory(dir, candidates); config != "" {
					return config
				}

				parent := filepath.Dir(dir)
				if parent == dir ||
					dir == volume ||
					(volume != "" && dir == volume+string(filepath.Separator)) {
					break
				}
			}
		}
	}

	if config := searchConfigInDirectory(".", candidates); config != "" {
		return config
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		if config := searchConfigInDirectory(filepath.Join(xdgConfig, constants.ToolName), candidates); config != "" {
			return config
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		if config := searchConfigInDirectory(filepath.Join(home, ".config", constants.ToolName), candidates); config != "" {
			return config
		}
	}

	if envConfig := os.Getenv(constants.EnvVarPrefix + "_CONFIG"); envConfig != "" {
		if _, err := os.Stat(envConfig); err == nil {
			return envConfig
		}
	}

	return ""
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	tiers := map[string]TierConfig{
		"cache.on_the_fly": c.Cache.OnTheFly,
		"cache.explicit":   c.Cache.Explicit,
		"cache.rule":       c.Cache.Rule,
	}
	for name, tier := range tiers {
		if tier.ExpireMs < 0 {
			return fmt.Errorf("%s.expire_ms must be >= 0, got %d", name, tier.ExpireMs)
		}
		if tier.MaxEntries < 1 {
			return fmt.Errorf("%s.max_entries must be >= 1, got %d", name, tier.MaxEntries)
		}
	}

	if c.Analysis.TabWidth < 1 || c.Analysis.TabWidth > 32 {
		return fmt.Errorf("analysis.tab_width must be between 1 and 32, got %d", c.Analysis.TabWidth)
	}
	if c.Analysis.LockWaitMs < 0 {
		return fmt.Errorf("analysis.lock_wait_ms must be >= 0, got %d", c.Analysis.LockWaitMs)
	}
	if c.Analysis.MaxOnTheFlyLines < 0 {
		return fmt.Errorf("analysis.max_on_the_fly_lines must be >= 0, got %d", c.Analysis.MaxOnTheFlyLines)
	}

	if c.Rules.RuleSet == "" {
		return fmt.Errorf("rules.rule_set must not be empty")
	}

	if c.Performance.MaxGoroutines < 0 {
		return fmt.Errorf("performance.max_goroutines must be >= 0, got %d", c.Performance.MaxGoroutines)
	}
	if c.Performance.TimeoutSeconds < 0 {
		return fmt.Errorf("performance.timeout_seconds must be >= 0, got %d", c.Performance.TimeoutSeconds)
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
		"yaml": true,
	}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("invalid output.format '%s', must be one of: text, json, yaml", c.Output.Format)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level '%s': %w", c.Log.Level, err)
	}

	return nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	// Create a new viper instance to avoid race conditions
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v, config)
	return v.WriteConfig()
}
