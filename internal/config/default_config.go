package config

import "github.com/spf13/viper"

// setDefaults registers every config key with viper so that environment
// overrides apply to keys absent from the config file
func setDefaults(v *viper.Viper, cfg *Config) {
	tiers := map[string]TierConfig{
		"cache.on_the_fly": cfg.Cache.OnTheFly,
		"cache.explicit":   cfg.Cache.Explicit,
		"cache.rule":       cfg.Cache.Rule,
	}
	for prefix, tier := range tiers {
		v.SetDefault(prefix+".enabled", tier.Enabled)
		v.SetDefault(prefix+".expire_ms", tier.ExpireMs)
		v.SetDefault(prefix+".max_entries", tier.MaxEntries)
	}

	v.SetDefault("analysis.tab_width", cfg.Analysis.TabWidth)
	v.SetDefault("analysis.lock_wait_ms", cfg.Analysis.LockWaitMs)
	v.SetDefault("analysis.max_on_the_fly_lines", cfg.Analysis.MaxOnTheFlyLines)
	v.SetDefault("analysis.skip_generated", cfg.Analysis.SkipGenerated)
	v.SetDefault("analysis.recursive", cfg.Analysis.Recursive)
	v.SetDefault("analysis.include_patterns", cfg.Analysis.IncludePatterns)
	v.SetDefault("analysis.exclude_patterns", cfg.Analysis.ExcludePatterns)
	v.SetDefault("analysis.respect_gitignore", cfg.Analysis.RespectGitignore)

	v.SetDefault("rules.rule_set", cfg.Rules.RuleSet)
	v.SetDefault("rules.disabled", cfg.Rules.Disabled)

	v.SetDefault("performance.max_goroutines", cfg.Performance.MaxGoroutines)
	v.SetDefault("performance.timeout_seconds", cfg.Performance.TimeoutSeconds)

	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.show_progress", cfg.Output.ShowProgress)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)
	v.SetDefault("log.max_age_days", cfg.Log.MaxAgeDays)
	v.SetDefault("log.compress", cfg.Log.Compress)

	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}
