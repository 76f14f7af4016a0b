package builder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/factory"
	mapset "github.com/deckarep/golang-set/v2"
)

// Factory converts a single Step into a Request.
type Factory interface {
	CreateRequestFromStep(step domain.Step) (domain.Request, error)
}

// Result is the outcome of a build. Errors and warnings never abort it;
// Graph holds every step that converted.
type Result struct {
	Graph    *domain.Graph
	Errors   []error
	Warnings []string
}

// OK reports whether the build produced no errors.
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// Builder turns ordered Steps into an Execution Graph.
// It never touches the environment and keeps no state between builds.
type Builder struct {
	factory Factory
	logger  *slog.Logger
}

// Option configures the builder.
type Option func(*Builder)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// New creates a builder around the given factory. A nil factory uses the default table.
func New(f Factory, opts ...Option) *Builder {
	if f == nil {
		f = factory.New()
	}
	b := &Builder{
		factory: f,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NodeID returns the id a step receives at position i.
func NodeID(step domain.Step, i int) string {
	if step.Name != "" {
		return step.Name
	}
	return fmt.Sprintf("step_%d", i)
}

type pending struct {
	id    string
	index int
	step  domain.Step
}

// Build converts steps in order, wires dependencies and collects problems.
func (b *Builder) Build(steps []domain.Step, wctx domain.WorkflowContext) *Result {
	res := &Result{Graph: domain.NewGraph()}
	var built []pending

	// aliases lets depends_on name a step either by its name or by step_<i>.
	aliases := make(map[string]string)

	for i, raw := range steps {
		step := FormatStep(raw, wctx)
		req, err := b.factory.CreateRequestFromStep(step)
		if err != nil {
			res.Errors = append(res.Errors, &domain.ConstructionError{Index: i, Type: step.Type, Err: err})
			b.logger.Debug("step rejected", "index", i, "type", step.Type, "err", err)
			continue
		}

		id := NodeID(step, i)
		if err := res.Graph.AddNode(id, req, i); err != nil {
			res.Errors = append(res.Errors, &domain.ConstructionError{Index: i, Type: step.Type, Err: err})
			continue
		}
		aliases[id] = id
		if auto := fmt.Sprintf("step_%d", i); auto != id {
			if _, taken := aliases[auto]; !taken {
				aliases[auto] = id
			}
		}
		built = append(built, pending{id: id, index: i, step: step})
	}

	for k, p := range built {
		if p.step.DependsOn == nil {
			if k > 0 {
				b.addEdge(res, p, built[k-1].id)
			}
			continue
		}
		for _, target := range p.step.DependsOn {
			dep, ok := aliases[target]
			if !ok {
				dep = target
			}
			b.addEdge(res, p, dep)
		}
	}

	res.Warnings = append(res.Warnings, nameWarnings(built)...)
	res.Warnings = append(res.Warnings, redundancyWarnings(built)...)
	res.Warnings = append(res.Warnings, placeholderWarnings(res.Graph, built, aliases)...)

	b.logger.Debug("graph built",
		"nodes", res.Graph.Len(),
		"edges", res.Graph.EdgeCount(),
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
	)
	return res
}

func (b *Builder) addEdge(res *Result, p pending, dep string) {
	if err := res.Graph.AddDependency(p.id, dep); err != nil {
		res.Errors = append(res.Errors, &domain.ConstructionError{Index: p.index, Type: p.step.Type, Err: err})
	}
}

// BuildComposite converts steps into a single Request that runs them in order.
// One convertible step yields that step's Request directly.
func (b *Builder) BuildComposite(steps []domain.Step, wctx domain.WorkflowContext) (domain.Request, []error) {
	var reqs []domain.Request
	var errs []error
	for i, raw := range steps {
		req, err := b.factory.CreateRequestFromStep(FormatStep(raw, wctx))
		if err != nil {
			errs = append(errs, &domain.ConstructionError{Index: i, Type: raw.Type, Err: err})
			continue
		}
		reqs = append(reqs, req)
	}
	return domain.NewComposite("workflow", reqs...), errs
}

// FormatStep expands workflow context keys in cmd and cwd.
func FormatStep(step domain.Step, wctx domain.WorkflowContext) domain.Step {
	out := step.Clone()
	for i, arg := range out.Cmd {
		out.Cmd[i] = wctx.Format(arg)
	}
	out.Cwd = wctx.Format(out.Cwd)
	return out
}

func nameWarnings(built []pending) []string {
	var warnings []string
	for _, p := range built {
		if p.step.Name != "" && !domain.Addressable(p.step.Name) {
			warnings = append(warnings, fmt.Sprintf("step %d (%s): name cannot be referenced from placeholders; use letters, digits and underscores", p.index, p.id))
		}
	}
	return warnings
}

func redundancyWarnings(built []pending) []string {
	var warnings []string
	created := mapset.NewThreadUnsafeSet[string]()
	for _, p := range built {
		req := p.step
		switch req.Type {
		case domain.StepMkdir:
			key := filepath.Clean(req.Cmd[0])
			if created.Contains(key) {
				warnings = append(warnings, fmt.Sprintf("step %d (%s): redundant mkdir of %q", p.index, p.id, req.Cmd[0]))
			}
			created.Add(key)
		case domain.StepCopy, domain.StepMove, domain.StepCopyTree, domain.StepMoveTree:
			if filepath.Clean(req.Cmd[0]) == filepath.Clean(req.Cmd[1]) {
				warnings = append(warnings, fmt.Sprintf("step %d (%s): source and destination are the same path %q", p.index, p.id, req.Cmd[0]))
			}
		}
	}
	return warnings
}

func placeholderWarnings(g *domain.Graph, built []pending, aliases map[string]string) []string {
	var warnings []string
	for _, p := range built {
		node, _ := g.Node(p.id)
		ancestors := g.Ancestors(p.id)
		for _, ref := range ReferencedNodes(node.Request) {
			target, ok := resolveRef(ref, aliases)
			switch {
			case !ok:
				warnings = append(warnings, fmt.Sprintf("step %d (%s): placeholder references unknown step %q", p.index, p.id, ref))
			case !ancestors[target]:
				warnings = append(warnings, fmt.Sprintf("step %d (%s): placeholder references %q which is not an upstream dependency", p.index, p.id, target))
			}
		}
	}
	return warnings
}

func resolveRef(ref string, aliases map[string]string) (string, bool) {
	if id, ok := aliases[ref]; ok {
		return id, true
	}
	if id, ok := aliases["step_"+ref]; ok {
		return id, true
	}
	return "", false
}

// Errs joins build errors for callers that want a single error value.
func (r *Result) Errs() error {
	return errors.Join(r.Errors...)
}

// Messages returns the build errors as strings.
func (r *Result) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}

// ReferencedNodes lists the <ref> parts of result placeholders found in req.
func ReferencedNodes(req domain.Request) []string {
	var refs []string
	for _, s := range domain.RequestStrings(req) {
		refs = append(refs, domain.PlaceholderRefs(s)...)
	}
	return refs
}
