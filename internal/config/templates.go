package config

import (
	"strconv"
	"strings"
)

// ProjectType represents the type of JavaScript/TypeScript project
type ProjectType string

const (
	ProjectTypeGeneric     ProjectType = "generic"
	ProjectTypeReact       ProjectType = "react"
	ProjectTypeNodeBackend ProjectType = "node"
)

// Responsiveness trades editor latency against result freshness
type Responsiveness string

const (
	ResponsivenessBalanced Responsiveness = "balanced"
	ResponsivenessSnappy   Responsiveness = "snappy"
	ResponsivenessThorough Responsiveness = "thorough"
)

// ProjectPreset holds file selection presets for different project types
type ProjectPreset struct {
	IncludePatterns []string
	ExcludePatterns []string
}

// ResponsivenessPreset holds on-the-fly tuning values
type ResponsivenessPreset struct {
	OnTheFlyExpireMs int
	LockWaitMs       int
	MaxOnTheFlyLines int
}

// GetProjectPresets returns presets for different project types
func GetProjectPresets() map[ProjectType]ProjectPreset {
	return map[ProjectType]ProjectPreset{
		ProjectTypeGeneric: {
			IncludePatterns: []string{"**/*.js", "**/*.jsx", "**/*.ts", "**/*.tsx"},
			ExcludePatterns: []string{
				"**/node_modules/**",
				"**/dist/**",
				"**/build/**",
				"**/*.min.js",
			},
		},
		ProjectTypeReact: {
			IncludePatterns: []string{"**/*.js", "**/*.jsx", "**/*.ts", "**/*.tsx"},
			ExcludePatterns: []string{
				"**/node_modules/**",
				"**/dist/**",
				"**/build/**",
				"**/.next/**",
				"**/coverage/**",
				"**/*.min.js",
			},
		},
		ProjectTypeNodeBackend: {
			IncludePatterns: []string{"**/*.js", "**/*.mjs", "**/*.cjs", "**/*.ts"},
			ExcludePatterns: []string{
				"**/node_modules/**",
				"**/dist/**",
				"**/coverage/**",
				"**/*.min.js",
			},
		},
	}
}

// GetResponsivenessPresets returns on-the-fly tuning presets
func GetResponsivenessPresets() map[Responsiveness]ResponsivenessPreset {
	return map[Responsiveness]ResponsivenessPreset{
		ResponsivenessBalanced: {
			OnTheFlyExpireMs: DefaultOnTheFlyExpireMs,
			LockWaitMs:       DefaultLockWaitMs,
			MaxOnTheFlyLines: DefaultMaxOnTheFlyLines,
		},
		ResponsivenessSnappy: {
			OnTheFlyExpireMs: 3000,
			LockWaitMs:       20,
			MaxOnTheFlyLines: 1500,
		},
		ResponsivenessThorough: {
			OnTheFlyExpireMs: 500,
			LockWaitMs:       150,
			MaxOnTheFlyLines: 0,
		},
	}
}

// GetFullConfigTemplate returns the documented config template as YAML
func GetFullConfigTemplate(projectType ProjectType, responsiveness Responsiveness, ruleSet string) string {
	preset := GetProjectPresets()[projectType]
	tuning := GetResponsivenessPresets()[responsiveness]
	if ruleSet == "" {
		ruleSet = DefaultRuleSet
	}

	return `# jsinspect configuration
# Documentation: https://github.com/ludo-technologies/jsinspect

# Result caches. on_the_fly serves edit-triggered analysis, explicit serves
# commands, batch runs and pre-commit checks, rule serves single-rule requests.
cache:
  on_the_fly:
    enabled: true
    expire_ms: ` + strconv.Itoa(tuning.OnTheFlyExpireMs) + `
    max_entries: ` + strconv.Itoa(DefaultCacheMaxEntries) + `
  explicit:
    enabled: true
    expire_ms: ` + strconv.Itoa(DefaultExplicitExpireMs) + `
    max_entries: ` + strconv.Itoa(DefaultCacheMaxEntries) + `
  rule:
    enabled: true
    expire_ms: ` + strconv.Itoa(DefaultRuleExpireMs) + `
    max_entries: ` + strconv.Itoa(DefaultRuleCacheMaxEntries) + `

analysis:
  # Column width of a tab character in reported positions
  tab_width: ` + strconv.Itoa(DefaultTabWidth) + `
  # How long edit-triggered analysis waits for a busy file (ms)
  lock_wait_ms: ` + strconv.Itoa(tuning.LockWaitMs) + `
  # Larger files are only analyzed on request (0 = no limit)
  max_on_the_fly_lines: ` + strconv.Itoa(tuning.MaxOnTheFlyLines) + `
  # Skip files whose header contains @generated
  skip_generated: true
  recursive: true
  respect_gitignore: true
  include_patterns:
` + formatYAMLList(preset.IncludePatterns) + `
  exclude_patterns:
` + formatYAMLList(preset.ExcludePatterns) + `

rules:
  # Rule set to run: see "jsinspect rules"
  rule_set: ` + ruleSet + `
  disabled: []

performance:
  # Files analyzed in parallel by batch runs
  max_goroutines: ` + strconv.Itoa(DefaultMaxGoroutines) + `
  timeout_seconds: ` + strconv.Itoa(DefaultTimeoutSeconds) + `

output:
  # text, json or yaml
  format: text
  show_progress: true

log:
  level: info
  # Rotated log file; empty logs to stderr
  file: ""
  max_size_mb: 10
  max_backups: 3
  max_age_days: 7

metrics:
  # Address of the Prometheus endpoint served by "jsinspect watch"
  addr: ""
`
}

// GetMinimalConfigTemplate returns a minimal config template
func GetMinimalConfigTemplate() string {
	return `# jsinspect configuration (minimal)
# See full options: https://github.com/ludo-technologies/jsinspect

cache:
  on_the_fly:
    expire_ms: ` + strconv.Itoa(DefaultOnTheFlyExpireMs) + `
  explicit:
    expire_ms: ` + strconv.Itoa(DefaultExplicitExpireMs) + `

rules:
  rule_set: ` + DefaultRuleSet + `
`
}

// formatYAMLList formats a string slice as an indented YAML sequence
func formatYAMLList(items []string) string {
	if len(items) == 0 {
		return "    []"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = `    - "` + item + `"`
	}
	return strings.Join(lines, "\n")
}
