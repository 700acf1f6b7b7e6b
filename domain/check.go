package domain

// OutputFormat represents the supported output formats
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// CheckResult represents the result of a pre-commit check
type CheckResult struct {
	Passed      bool             `json:"passed" yaml:"passed"`
	ExitCode    int              `json:"exit_code" yaml:"exit_code"`
	Violations  []CheckViolation `json:"violations" yaml:"violations"`
	Failures    []CheckFailure   `json:"failures,omitempty" yaml:"failures,omitempty"`
	Summary     CheckSummary     `json:"summary" yaml:"summary"`
	Duration    int64            `json:"duration_ms" yaml:"duration_ms"`
	GeneratedAt string           `json:"generated_at" yaml:"generated_at"`
	Version     string           `json:"version" yaml:"version"`
}

// CheckViolation represents a single violation found by the check
type CheckViolation struct {
	Rule     string `json:"rule" yaml:"rule"`
	Severity string `json:"severity" yaml:"severity"` // Blocker, Critical, Major
	Message  string `json:"message" yaml:"message"`   // Description with "(line N)" suffix
	Location string `json:"location" yaml:"location"` // file:line:column
}

// CheckFailure is a file the check could not analyze
type CheckFailure struct {
	File  string `json:"file" yaml:"file"`
	Error string `json:"error" yaml:"error"`
}

// CheckSummary provides aggregate statistics
type CheckSummary struct {
	FilesAnalyzed   int    `json:"files_analyzed" yaml:"files_analyzed"`
	FilesFailed     int    `json:"files_failed" yaml:"files_failed"`
	TotalViolations int    `json:"total_violations" yaml:"total_violations"`
	Blockers        int    `json:"blockers" yaml:"blockers"`
	Criticals       int    `json:"criticals" yaml:"criticals"`
	Majors          int    `json:"majors" yaml:"majors"`
	Text            string `json:"text" yaml:"text"`
}
