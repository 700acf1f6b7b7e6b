package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when an on-the-fly request could not take the file
	// lock within its bounded wait
	ErrBusy = errors.New("file is busy")

	// ErrNoQuickFix is returned when no quick fix exists for a rule
	ErrNoQuickFix = errors.New("no quick fix available")

	// ErrFixNotApplicable is returned when the source no longer matches the marker
	ErrFixNotApplicable = errors.New("quick fix does not apply to current content")

	// ErrStaleMarker is returned when a marker was resolved against content
	// that has changed since
	ErrStaleMarker = errors.New("marker is out of date")

	// ErrMarkerNotFound is returned when a marker ID is not published
	ErrMarkerNotFound = errors.New("marker not found")

	// ErrSessionClosed is returned by a session after Close
	ErrSessionClosed = errors.New("session closed")
)

// AnalysisError is a per-file analysis failure
type AnalysisError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of %s failed: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// ConfigError is a configuration loading or validation failure
type ConfigError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Message, e.Err)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration error
func NewConfigError(message string, err error) error {
	return &ConfigError{Message: message, Err: err}
}
