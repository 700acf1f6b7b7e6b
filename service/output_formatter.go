package service

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ludo-technologies/jsinspect/domain"
	"github.com/ludo-technologies/jsinspect/internal/version"
)

// OutputFormatterImpl renders inspection results for the CLI
type OutputFormatterImpl struct{}

// NewOutputFormatter creates a new output formatter
func NewOutputFormatter() *OutputFormatterImpl {
	return &OutputFormatterImpl{}
}

// WriteJSON writes data as indented JSON to the writer
func WriteJSON(writer io.Writer, data interface{}) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteYAML writes data as YAML to the writer
func WriteYAML(writer io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// ViewReport wraps an aggregated view with report metadata
type ViewReport struct {
	Version     string                `json:"version" yaml:"version"`
	GeneratedAt string                `json:"generated_at" yaml:"generated_at"`
	DurationMs  int64                 `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Summary     string                `json:"summary" yaml:"summary"`
	View        domain.AggregatedView `json:"view" yaml:"view"`
	Failures    []domain.CheckFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// NewViewReport builds a report for a view
func NewViewReport(view domain.AggregatedView, duration time.Duration, failures []domain.CheckFailure) *ViewReport {
	return &ViewReport{
		Version:     version.Version,
		GeneratedAt: time.Now().Format(time.RFC3339),
		DurationMs:  duration.Milliseconds(),
		Summary:     view.Summary(),
		View:        view,
		Failures:    failures,
	}
}

// WriteView writes an inspection report in the specified format
func (f *OutputFormatterImpl) WriteView(report *ViewReport, format domain.OutputFormat, writer io.Writer) error {
	switch format {
	case domain.OutputFormatJSON:
		return WriteJSON(writer, report)
	case domain.OutputFormatYAML:
		return WriteYAML(writer, report)
	case domain.OutputFormatText, "":
		return f.writeViewText(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteCheck writes a pre-commit check result in the specified format
func (f *OutputFormatterImpl) WriteCheck(result *domain.CheckResult, format domain.OutputFormat, writer io.Writer) error {
	switch format {
	case domain.OutputFormatJSON:
		return WriteJSON(writer, result)
	case domain.OutputFormatYAML:
		return WriteYAML(writer, result)
	case domain.OutputFormatText, "":
		return f.writeCheckText(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// writeViewText prints the Level -> Rule -> File tree
func (f *OutputFormatterImpl) writeViewText(report *ViewReport, writer io.Writer) error {
	fmt.Fprintf(writer, "\n=== jsinspect Inspection Results ===\n\n")
	fmt.Fprintf(writer, "Generated: %s\n", report.GeneratedAt)
	if report.DurationMs > 0 {
		fmt.Fprintf(writer, "Duration: %dms\n", report.DurationMs)
	}
	fmt.Fprintf(writer, "Version: %s\n\n", report.Version)

	if report.View.Total == 0 {
		fmt.Fprintf(writer, "No violations found.\n")
	}

	for _, level := range report.View.Levels {
		fmt.Fprintf(writer, "%s (%d)\n", level.Title, level.Count)
		for _, rule := range level.Rules {
			fmt.Fprintf(writer, "  %s (%d)\n", rule.Rule, rule.Count)
			for _, file := range rule.Files {
				fmt.Fprintf(writer, "    %s (%d)\n", file.File, file.Count)
				for _, m := range file.Markers {
					fmt.Fprintf(writer, "      %s  %s\n", markerPosition(m), m.Violation.MessageWithLine())
				}
			}
		}
		fmt.Fprintf(writer, "\n")
	}

	if len(report.Failures) > 0 {
		fmt.Fprintf(writer, "Errors:\n")
		for _, failure := range report.Failures {
			fmt.Fprintf(writer, "  - %s: %s\n", failure.File, failure.Error)
		}
		fmt.Fprintf(writer, "\n")
	}

	fmt.Fprintf(writer, "Summary: %s\n", report.Summary)
	return nil
}

func markerPosition(m domain.Marker) string {
	if m.FileLevel {
		return "-:-"
	}
	return fmt.Sprintf("%d:%d", m.Violation.BeginLine, m.Violation.BeginColumn)
}

// writeCheckText prints one line per violation, compiler style
func (f *OutputFormatterImpl) writeCheckText(result *domain.CheckResult, writer io.Writer) error {
	for _, v := range result.Violations {
		fmt.Fprintf(writer, "%s: [%s] %s: %s\n", v.Location, v.Severity, v.Rule, v.Message)
	}
	for _, failure := range result.Failures {
		fmt.Fprintf(writer, "%s: error: %s\n", failure.File, failure.Error)
	}

	if len(result.Violations) > 0 || len(result.Failures) > 0 {
		fmt.Fprintf(writer, "\n")
	}
	fmt.Fprintf(writer, "%d files analyzed, %s\n", result.Summary.FilesAnalyzed, result.Summary.Text)
	if result.Passed {
		fmt.Fprintf(writer, "Check passed\n")
	} else {
		fmt.Fprintf(writer, "Check failed\n")
	}
	return nil
}
