package dsl

import (
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// StepBuilder configures one step.
type StepBuilder struct {
	step domain.Step
}

func (s *StepBuilder) action(t domain.StepType, cmd ...string) *StepBuilder {
	s.step.Type = t
	s.step.Cmd = append([]string(nil), cmd...)
	return s
}

// Mkdir creates a directory and its parents.
func (s *StepBuilder) Mkdir(path string) *StepBuilder { return s.action(domain.StepMkdir, path) }

// Touch creates an empty file.
func (s *StepBuilder) Touch(path string) *StepBuilder { return s.action(domain.StepTouch, path) }

// Copy copies a file.
func (s *StepBuilder) Copy(src, dst string) *StepBuilder {
	return s.action(domain.StepCopy, src, dst)
}

// CopyTree copies a directory recursively.
func (s *StepBuilder) CopyTree(src, dst string) *StepBuilder {
	return s.action(domain.StepCopyTree, src, dst)
}

// Move moves a file.
func (s *StepBuilder) Move(src, dst string) *StepBuilder {
	return s.action(domain.StepMove, src, dst)
}

// MoveTree moves a directory.
func (s *StepBuilder) MoveTree(src, dst string) *StepBuilder {
	return s.action(domain.StepMoveTree, src, dst)
}

// Remove deletes a file.
func (s *StepBuilder) Remove(path string) *StepBuilder { return s.action(domain.StepRemove, path) }

// RemoveTree deletes a directory recursively.
func (s *StepBuilder) RemoveTree(path string) *StepBuilder {
	return s.action(domain.StepRmtree, path)
}

// Shell runs a command through the shell driver.
func (s *StepBuilder) Shell(cmd ...string) *StepBuilder { return s.action(domain.StepShell, cmd...) }

// Compile is a shell step typed as build.
func (s *StepBuilder) Compile(cmd ...string) *StepBuilder { return s.action(domain.StepBuild, cmd...) }

// Test is a shell step typed as test.
func (s *StepBuilder) Test(cmd ...string) *StepBuilder { return s.action(domain.StepTest, cmd...) }

// OJ runs the online-judge tool.
func (s *StepBuilder) OJ(args ...string) *StepBuilder { return s.action(domain.StepOJ, args...) }

// Python runs a script, or inline code with "-c".
func (s *StepBuilder) Python(args ...string) *StepBuilder {
	return s.action(domain.StepPython, args...)
}

// Docker runs a docker sub-command (run, exec, cp, stop, rm).
func (s *StepBuilder) Docker(args ...string) *StepBuilder {
	return s.action(domain.StepDocker, args...)
}

// After replaces the implicit edge to the previous step with explicit dependencies.
func (s *StepBuilder) After(deps ...string) *StepBuilder {
	if s.step.DependsOn == nil {
		s.step.DependsOn = []string{}
	}
	s.step.DependsOn = append(s.step.DependsOn, deps...)
	return s
}

// Root makes the step independent of every other step.
func (s *StepBuilder) Root() *StepBuilder {
	s.step.DependsOn = []string{}
	return s
}

// Cwd sets the working directory.
func (s *StepBuilder) Cwd(dir string) *StepBuilder {
	s.step.Cwd = dir
	return s
}

// Timeout bounds execution time.
func (s *StepBuilder) Timeout(d time.Duration) *StepBuilder {
	s.step.Timeout = d
	return s
}

// AllowFailure lets dependents run even when this step fails.
func (s *StepBuilder) AllowFailure() *StepBuilder {
	s.step.AllowFailure = true
	return s
}

// ShowOutput streams the step's output.
func (s *StepBuilder) ShowOutput() *StepBuilder {
	s.step.ShowOutput = true
	return s
}

// Step returns a copy of the configured step.
func (s *StepBuilder) Step() domain.Step {
	return s.step.Clone()
}
