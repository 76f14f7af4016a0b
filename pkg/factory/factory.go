package factory

import (
	"fmt"
	"strings"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// Constructor turns a validated Step into a Request.
type Constructor func(step domain.Step) (domain.Request, error)

// Factory maps Steps to Requests through an explicit registration table.
// It holds no mutable state after construction and is safe for concurrent use.
type Factory struct {
	table map[domain.StepType]Constructor
}

// Option configures the factory.
type Option func(*Factory)

// WithConstructor registers or replaces the constructor for a step type.
func WithConstructor(t domain.StepType, c Constructor) Option {
	return func(f *Factory) {
		f.table[t] = c
	}
}

// New creates a factory with the default table, then applies opts.
func New(opts ...Option) *Factory {
	f := &Factory{table: DefaultTable()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DefaultTable returns a fresh copy of the built-in registration table.
func DefaultTable() map[domain.StepType]Constructor {
	return map[domain.StepType]Constructor{
		domain.StepMkdir:    fileOne(domain.FileMkdir),
		domain.StepTouch:    fileOne(domain.FileTouch),
		domain.StepRemove:   fileOne(domain.FileRemove),
		domain.StepRmtree:   fileOne(domain.FileRmtree),
		domain.StepCopy:     fileTwo(domain.FileCopy),
		domain.StepMove:     fileTwo(domain.FileMove),
		domain.StepMoveTree: fileTwo(domain.FileMoveTree),
		domain.StepCopyTree: fileTwo(domain.FileCopyTree),
		domain.StepShell:    newShell,
		domain.StepBuild:    newShell,
		domain.StepTest:     newShell,
		domain.StepOJ:       newShell,
		domain.StepPython:   newInterpreter,
		domain.StepDocker:   newContainer,
	}
}

var defaultFactory = New()

// CreateRequestFromStep converts a step with the default table.
func CreateRequestFromStep(step domain.Step) (domain.Request, error) {
	return defaultFactory.CreateRequestFromStep(step)
}

// CreateRequestFromStep validates the step type and arity, then builds the Request.
// It never touches the filesystem, network or processes.
func (f *Factory) CreateRequestFromStep(step domain.Step) (domain.Request, error) {
	ctor, ok := f.table[step.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStepType, step.Type)
	}
	req, err := ctor(step.Clone())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step.Type, err)
	}
	return req, nil
}

// Types returns the registered step types.
func (f *Factory) Types() []domain.StepType {
	out := make([]domain.StepType, 0, len(f.table))
	for t := range f.table {
		out = append(out, t)
	}
	return out
}

func meta(step domain.Step, fallback string) domain.RequestMeta {
	name := step.Name
	if name == "" {
		name = fallback
	}
	return domain.RequestMeta{
		Name:         name,
		AllowFailure: step.AllowFailure,
		ShowOutput:   step.ShowOutput,
	}
}

func exactly(step domain.Step, n int) error {
	if len(step.Cmd) != n {
		return fmt.Errorf("%w: want %d cmd entries, got %d", domain.ErrInvalidArity, n, len(step.Cmd))
	}
	return nonBlank(step.Cmd)
}

func atLeast(step domain.Step, n int) error {
	if len(step.Cmd) < n {
		return fmt.Errorf("%w: want at least %d cmd entries, got %d", domain.ErrInvalidArity, n, len(step.Cmd))
	}
	return nil
}

func nonBlank(args []string) error {
	for i, a := range args {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: cmd[%d] is blank", domain.ErrEmptyCommand, i)
		}
	}
	return nil
}

func fileOne(op domain.FileOp) Constructor {
	return func(step domain.Step) (domain.Request, error) {
		if err := exactly(step, 1); err != nil {
			return nil, err
		}
		return &domain.FileRequest{
			RequestMeta: meta(step, fmt.Sprintf("%s_%s", op, step.Cmd[0])),
			Op:          op,
			Path:        step.Cmd[0],
		}, nil
	}
}

func fileTwo(op domain.FileOp) Constructor {
	return func(step domain.Step) (domain.Request, error) {
		if err := exactly(step, 2); err != nil {
			return nil, err
		}
		return &domain.FileRequest{
			RequestMeta: meta(step, fmt.Sprintf("%s_%s_to_%s", op, step.Cmd[0], step.Cmd[1])),
			Op:          op,
			Path:        step.Cmd[0],
			Dst:         step.Cmd[1],
		}, nil
	}
}

func newShell(step domain.Step) (domain.Request, error) {
	if err := atLeast(step, 1); err != nil {
		return nil, err
	}
	if strings.TrimSpace(step.Cmd[0]) == "" {
		return nil, fmt.Errorf("%w: cmd[0] is blank", domain.ErrEmptyCommand)
	}
	head := step.Cmd
	if len(head) > 3 {
		head = head[:3]
	}
	return &domain.ShellRequest{
		RequestMeta: meta(step, "shell_"+strings.Join(head, "_")),
		Cmd:         step.Cmd,
		Cwd:         step.Cwd,
		Timeout:     step.Timeout,
	}, nil
}

func newInterpreter(step domain.Step) (domain.Request, error) {
	if err := atLeast(step, 1); err != nil {
		return nil, err
	}
	if strings.TrimSpace(step.Cmd[0]) == "" {
		return nil, fmt.Errorf("%w: cmd[0] is blank", domain.ErrEmptyCommand)
	}
	req := &domain.InterpreterRequest{
		Cwd:     step.Cwd,
		Timeout: step.Timeout,
	}
	if strings.HasSuffix(step.Cmd[0], ".py") {
		req.RequestMeta = meta(step, "python_"+step.Cmd[0])
		req.Script = step.Cmd[0]
		req.Args = step.Cmd[1:]
		if len(req.Args) == 0 {
			req.Args = nil
		}
		return req, nil
	}
	req.RequestMeta = meta(step, "python_code")
	req.Code = strings.Join(step.Cmd, "\n")
	return req, nil
}

func newContainer(step domain.Step) (domain.Request, error) {
	if err := atLeast(step, 2); err != nil {
		return nil, err
	}
	if err := nonBlank(step.Cmd[:2]); err != nil {
		return nil, err
	}
	op := domain.ContainerOp(strings.ToLower(step.Cmd[0]))
	args := step.Cmd[1:]
	req := &domain.ContainerRequest{Op: op, Timeout: step.Timeout}

	switch op {
	case domain.ContainerRun:
		// run <image> <name> [args...]
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: docker run wants image and container name", domain.ErrInvalidArity)
		}
		if err := nonBlank(args[:2]); err != nil {
			return nil, err
		}
		req.Image, req.Container = args[0], args[1]
		if len(args) > 2 {
			req.Cmd = args[2:]
		}
		req.RequestMeta = meta(step, "docker_run_"+req.Container)
	case domain.ContainerExec:
		// exec <container> <cmd...>
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: docker exec wants a container and a command", domain.ErrInvalidArity)
		}
		req.Container, req.Cmd = args[0], args[1:]
		req.RequestMeta = meta(step, "docker_exec_"+req.Container)
	case domain.ContainerStop, domain.ContainerRemove:
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: docker %s wants exactly one container", domain.ErrInvalidArity, op)
		}
		req.Container = args[0]
		req.RequestMeta = meta(step, fmt.Sprintf("docker_%s_%s", op, req.Container))
	case domain.ContainerCopy:
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: docker cp wants source and destination", domain.ErrInvalidArity)
		}
		if err := nonBlank(args); err != nil {
			return nil, err
		}
		req.Src, req.Dst = args[0], args[1]
		req.RequestMeta = meta(step, fmt.Sprintf("docker_cp_%s_to_%s", req.Src, req.Dst))
	default:
		return nil, fmt.Errorf("%w: unknown docker operation %q", domain.ErrInvalidArity, step.Cmd[0])
	}
	return req, nil
}
