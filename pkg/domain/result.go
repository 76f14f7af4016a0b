package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OperationResult is the outcome of one driver call or composite execution.
// It is produced once and never modified afterwards.
type OperationResult struct {
	Success      bool           `json:"success" yaml:"success"`
	Stdout       string         `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr       string         `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Content      string         `json:"content,omitempty" yaml:"content,omitempty"`
	Path         string         `json:"path,omitempty" yaml:"path,omitempty"`
	ExitCode     int            `json:"exit_code" yaml:"exit_code"`
	ErrorMessage string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	Category     ErrorCategory  `json:"category,omitempty" yaml:"category,omitempty"`
	Suggestion   string         `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	StartedAt    time.Time      `json:"started_at" yaml:"started_at"`
	Duration     time.Duration  `json:"duration" yaml:"duration"`

	// SubResults holds the results of a composite's executed sub-requests.
	SubResults []OperationResult `json:"sub_results,omitempty" yaml:"sub_results,omitempty"`
	// CompositeFailure is set when a composite stopped on a sub-request.
	CompositeFailure *CompositeError `json:"composite_failure,omitempty" yaml:"composite_failure,omitempty"`

	Request Request `json:"-" yaml:"-"`
}

// Succeeded builds a successful result for req.
func Succeeded(req Request) OperationResult {
	return OperationResult{Success: true, Request: req}
}

// Failed builds a failed result for req and classifies its message.
func Failed(req Request, format string, args ...any) OperationResult {
	msg := fmt.Sprintf(format, args...)
	category, suggestion := ClassifyFailure(msg)
	return OperationResult{
		Success:      false,
		ExitCode:     -1,
		ErrorMessage: msg,
		Category:     category,
		Suggestion:   suggestion,
		Request:      req,
	}
}

// Field returns the string form of a named field, for placeholder substitution.
// Trailing newlines of captured output are dropped.
func (r OperationResult) Field(name string) (string, bool) {
	switch name {
	case "stdout":
		return strings.TrimRight(r.Stdout, "\r\n"), true
	case "stderr":
		return strings.TrimRight(r.Stderr, "\r\n"), true
	case "content":
		return r.Content, true
	case "path":
		return r.Path, true
	case "success":
		return strconv.FormatBool(r.Success), true
	case "exit_code", "returncode":
		return strconv.Itoa(r.ExitCode), true
	case "error_message":
		return r.ErrorMessage, true
	}
	v, ok := r.Metadata[name]
	if !ok {
		return "", false
	}
	if v == nil {
		return "", true
	}
	return fmt.Sprint(v), true
}
