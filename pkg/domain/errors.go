package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownStepType is returned when a step names a type outside the StepType enumeration.
	ErrUnknownStepType = errors.New("unknown step type")
	// ErrInvalidArity is returned when a step's cmd has the wrong number of entries for its type.
	ErrInvalidArity = errors.New("invalid command arity")
	// ErrEmptyCommand is returned when a required command entry is blank.
	ErrEmptyCommand = errors.New("empty command")

	ErrDuplicateNode     = errors.New("duplicate node id")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrSelfDependency    = errors.New("node depends on itself")
	ErrCycle             = errors.New("dependency cycle")

	// ErrDriverUnavailable aborts an invocation: the graph needs a driver the caller did not supply.
	ErrDriverUnavailable = errors.New("driver unavailable")

	// ErrRunNotFound is returned when a run report cannot be found in the store.
	ErrRunNotFound = errors.New("run not found")

	// ErrLockAcquire is returned when a workspace lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire lock")
)

// ConstructionError reports a step that could not be turned into a Request or Node.
type ConstructionError struct {
	Index int
	Type  StepType
	Err   error
}

func (e *ConstructionError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("step %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// GraphErrorKind classifies structural graph problems.
type GraphErrorKind string

const (
	GraphDuplicateNode     GraphErrorKind = "duplicate_node"
	GraphUnknownDependency GraphErrorKind = "unknown_dependency"
	GraphSelfDependency    GraphErrorKind = "self_dependency"
	GraphCycle             GraphErrorKind = "cycle"
)

// GraphError reports a structural problem with a node or edge.
type GraphError struct {
	Kind   GraphErrorKind
	NodeID string
	Target string
	Err    error
}

func (e *GraphError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("node %q -> %q: %v", e.NodeID, e.Target, e.Err)
	}
	return fmt.Sprintf("node %q: %v", e.NodeID, e.Err)
}

func (e *GraphError) Unwrap() error { return e.Err }

// CompositeError is the distinguished failure of a composite that stopped early.
type CompositeError struct {
	Index       int    `json:"index" yaml:"index"`
	RequestName string `json:"request_name,omitempty" yaml:"request_name,omitempty"`
	Cause       string `json:"cause" yaml:"cause"`
	Suggestion  string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

func (e *CompositeError) Error() string {
	name := e.RequestName
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("composite stopped at sub-request %d (%s): %s", e.Index, name, e.Cause)
}

// ErrorCategory classifies an execution failure.
type ErrorCategory string

const (
	CategoryPermission      ErrorCategory = "permission"
	CategoryNotFound        ErrorCategory = "not_found"
	CategoryCommandNotFound ErrorCategory = "command_not_found"
	CategoryTimeout         ErrorCategory = "timeout"
	CategoryContainer       ErrorCategory = "container"
	CategoryCancelled       ErrorCategory = "cancelled"
	CategoryUnknown         ErrorCategory = "unknown"
)

var failureRules = []struct {
	needles    []string
	category   ErrorCategory
	suggestion string
}{
	{[]string{"executable file not found", "command not found"}, CategoryCommandNotFound, "install the program or check PATH"},
	{[]string{"deadline exceeded", "timed out", "signal: killed"}, CategoryTimeout, "raise the step timeout or check for a hung process"},
	{[]string{"context canceled"}, CategoryCancelled, "the run was cancelled; re-run when ready"},
	{[]string{"permission denied", "operation not permitted"}, CategoryPermission, "check permissions on the target path"},
	{[]string{"no such container", "is not running", "cannot connect to the docker daemon"}, CategoryContainer, "start the container or run fitting before executing"},
	{[]string{"no such file", "not exist", "not found"}, CategoryNotFound, "create the missing path or run fitting first"},
}

// ClassifyFailure maps a driver failure message to a category and a suggestion.
func ClassifyFailure(message string) (ErrorCategory, string) {
	lower := strings.ToLower(message)
	for _, rule := range failureRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.category, rule.suggestion
			}
		}
	}
	return CategoryUnknown, "inspect stderr for details"
}
