package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// Builder collects steps in declaration order.
type Builder struct {
	ctx   domain.WorkflowContext
	steps []*StepBuilder
	named map[string]*StepBuilder
}

// New creates an empty workflow builder.
func New() *Builder {
	return &Builder{named: make(map[string]*StepBuilder)}
}

// Contest sets the contest_name context value.
func (b *Builder) Contest(name string) *Builder {
	b.ctx.ContestName = name
	return b
}

// Problem sets the problem_name context value.
func (b *Builder) Problem(name string) *Builder {
	b.ctx.ProblemName = name
	return b
}

// Language sets the language context value.
func (b *Builder) Language(lang string) *Builder {
	b.ctx.Language = lang
	return b
}

// Workspace sets the workspace_path context value.
func (b *Builder) Workspace(path string) *Builder {
	b.ctx.WorkspacePath = path
	return b
}

// Set adds an extra {key} substitution.
func (b *Builder) Set(key, value string) *Builder {
	if b.ctx.Extra == nil {
		b.ctx.Extra = make(map[string]string)
	}
	b.ctx.Extra[key] = value
	return b
}

// Add appends a step.
// A named step that already exists is returned as is; an empty name always appends.
func (b *Builder) Add(name string) *StepBuilder {
	if name != "" {
		if sb, ok := b.named[name]; ok {
			return sb
		}
	}
	sb := &StepBuilder{step: domain.Step{Name: name}}
	b.steps = append(b.steps, sb)
	if name != "" {
		b.named[name] = sb
	}
	return sb
}

// Build returns the declared workflow.
// Steps without an action are reported together; graph-level problems such as
// unknown dependencies surface later, when the graph is built.
func (b *Builder) Build() (*domain.Workflow, error) {
	wf := &domain.Workflow{
		Context: b.ctx,
		Steps:   make([]domain.Step, 0, len(b.steps)),
	}
	if b.ctx.Extra != nil {
		wf.Context.Extra = make(map[string]string, len(b.ctx.Extra))
		for k, v := range b.ctx.Extra {
			wf.Context.Extra[k] = v
		}
	}

	var errs []error
	for i, sb := range b.steps {
		if sb.step.Type == "" {
			errs = append(errs, fmt.Errorf("step %d (%q) has no action", i, sb.step.Name))
			continue
		}
		wf.Steps = append(wf.Steps, sb.Step())
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return wf, nil
}
