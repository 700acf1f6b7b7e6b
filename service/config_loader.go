package service

import (
	"os"
	"path/filepath"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/config"
	"github.com/ludo-technologies/jsinspect/internal/constants"
)

// ConfigOverrides are command-line values that take precedence over the
// configuration file. Zero values leave the file setting untouched.
type ConfigOverrides struct {
	OutputFormat  string
	RuleSet       string
	Disabled      []string
	MaxGoroutines int
	LogLevel      string
	LogFile       string
	NoCache       bool
	NoProgress    bool
	MetricsAddr   string
}

// ConfigurationLoaderImpl loads and merges jsinspect configuration
type ConfigurationLoaderImpl struct{}

// NewConfigurationLoader creates a new configuration loader service
func NewConfigurationLoader() *ConfigurationLoaderImpl {
	return &ConfigurationLoaderImpl{}
}

// LoadConfig loads configuration from the specified path
func (c *ConfigurationLoaderImpl) LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, domain.NewConfigError("failed to load configuration file", err)
	}
	return cfg, nil
}

// LoadForTarget loads the configuration that applies to targetPath: the
// explicit configPath if given, otherwise the nearest config file above it
func (c *ConfigurationLoaderImpl) LoadForTarget(configPath, targetPath string) (*config.Config, error) {
	cfg, err := config.LoadConfigWithTarget(configPath, targetPath)
	if err != nil {
		return nil, domain.NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// FindDefaultConfigFile searches startDir and its parents for a config file
func (c *ConfigurationLoaderImpl) FindDefaultConfigFile(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for {
		for _, file := range constants.ConfigFileCandidates {
			configPath := filepath.Join(dir, file)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(dir)
		if parentDir == dir {
			// Reached root directory
			return ""
		}
		dir = parentDir
	}
}

// MergeConfig returns a copy of base with the overrides applied
func (c *ConfigurationLoaderImpl) MergeConfig(base *config.Config, override ConfigOverrides) *config.Config {
	merged := *base
	merged.Rules.Disabled = append([]string(nil), base.Rules.Disabled...)

	if override.OutputFormat != "" {
		merged.Output.Format = override.OutputFormat
	}
	if override.RuleSet != "" {
		merged.Rules.RuleSet = override.RuleSet
	}
	if len(override.Disabled) > 0 {
		merged.Rules.Disabled = append(merged.Rules.Disabled, override.Disabled...)
	}
	if override.MaxGoroutines > 0 {
		merged.Performance.MaxGoroutines = override.MaxGoroutines
	}
	if override.LogLevel != "" {
		merged.Log.Level = override.LogLevel
	}
	if override.LogFile != "" {
		merged.Log.File = override.LogFile
	}
	if override.NoCache {
		merged.Cache.OnTheFly.Enabled = false
		merged.Cache.Explicit.Enabled = false
		merged.Cache.Rule.Enabled = false
	}
	if override.NoProgress {
		merged.Output.ShowProgress = false
	}
	if override.MetricsAddr != "" {
		merged.Metrics.Addr = override.MetricsAddr
	}

	return &merged
}

// ValidateConfig validates a merged configuration
func (c *ConfigurationLoaderImpl) ValidateConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return domain.NewConfigError("invalid configuration", err)
	}
	return nil
}

// Load resolves the effective configuration for a command: file discovery,
// overrides, validation
func (c *ConfigurationLoaderImpl) Load(configPath, targetPath string, override ConfigOverrides) (*config.Config, error) {
	base, err := c.LoadForTarget(configPath, targetPath)
	if err != nil {
		return nil, err
	}
	merged := c.MergeConfig(base, override)
	if err := c.ValidateConfig(merged); err != nil {
		return nil, err
	}
	return merged, nil
}
