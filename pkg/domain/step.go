package domain

import (
	"fmt"
	"strings"
	"time"
)

// StepType identifies the kind of action a Step describes.
type StepType string

const (
	StepMkdir    StepType = "mkdir"
	StepTouch    StepType = "touch"
	StepCopy     StepType = "copy"
	StepMove     StepType = "move"
	StepMoveTree StepType = "movetree"
	StepCopyTree StepType = "copytree"
	StepRemove   StepType = "remove"
	StepRmtree   StepType = "rmtree"
	StepShell    StepType = "shell"
	StepBuild    StepType = "build"
	StepTest     StepType = "test"
	StepOJ       StepType = "oj"
	StepPython   StepType = "python"
	StepDocker   StepType = "docker"
)

var knownStepTypes = map[StepType]struct{}{
	StepMkdir: {}, StepTouch: {}, StepCopy: {}, StepMove: {}, StepMoveTree: {},
	StepCopyTree: {}, StepRemove: {}, StepRmtree: {}, StepShell: {}, StepBuild: {},
	StepTest: {}, StepOJ: {}, StepPython: {}, StepDocker: {},
}

// ParseStepType converts a raw (case-insensitive) type name into a StepType.
func ParseStepType(raw string) (StepType, error) {
	t := StepType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownStepTypes[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStepType, raw)
	}
	return t, nil
}

// IsFileOperation reports whether the type maps to the File driver.
func (t StepType) IsFileOperation() bool {
	switch t {
	case StepMkdir, StepTouch, StepCopy, StepMove, StepMoveTree, StepCopyTree, StepRemove, StepRmtree:
		return true
	}
	return false
}

// Step is the declarative unit supplied by a caller.
// Steps are values: copy them freely, never mutate a shared one.
type Step struct {
	Type         StepType `json:"type" yaml:"type"`
	Cmd          []string `json:"cmd" yaml:"cmd"`
	AllowFailure bool     `json:"allow_failure,omitempty" yaml:"allow_failure,omitempty"`
	ShowOutput   bool     `json:"show_output,omitempty" yaml:"show_output,omitempty"`

	// Name addresses the step from depends_on lists and placeholders.
	// Placeholders only reach names made of letters, digits and underscores.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// DependsOn replaces the implicit edge to the previous step when non-nil.
	// An empty, non-nil slice makes the step a root.
	DependsOn []string      `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Cwd       string        `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	c := s
	if s.Cmd != nil {
		c.Cmd = append([]string(nil), s.Cmd...)
	}
	if s.DependsOn != nil {
		c.DependsOn = append([]string{}, s.DependsOn...)
	}
	return c
}
