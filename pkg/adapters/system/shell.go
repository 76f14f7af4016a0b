package system

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Option configures the exec-backed drivers.
type Option func(*process)

// WithBaseDir sets the working directory for relative cwd values.
func WithBaseDir(dir string) Option {
	return func(p *process) {
		p.baseDir = dir
	}
}

// WithTimeout replaces the 5 minute default timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *process) {
		p.timeout = d
	}
}

// WithEnv adds KEY=VALUE pairs to every process environment.
func WithEnv(env map[string]string) Option {
	return func(p *process) {
		p.env = append(p.env, envPairs(env)...)
	}
}

// WithOutput mirrors the output of show_output requests to w.
func WithOutput(w io.Writer) Option {
	return func(p *process) {
		p.output = w
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *process) {
		p.logger = logger
	}
}

func newProcess(opts []Option) *process {
	p := &process{
		output: os.Stdout,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func envPairs(env map[string]string) []string {
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(pairs)
	return pairs
}

// Shell implements ports.ShellDriver with os/exec.
// Commands are executed directly, never through /bin/sh, so cmd elements are
// passed as argv without interpretation.
type Shell struct {
	proc  *process
	tools map[string]Tool
}

// NewShell creates a shell driver.
func NewShell(opts ...Option) *Shell {
	return &Shell{proc: newProcess(opts), tools: make(map[string]Tool)}
}

// Register maps a command name to a configured tool.
func (s *Shell) Register(tool Tool) {
	s.tools[tool.Name] = tool
}

// RegisterTools registers every tool of a loaded tools file.
func (s *Shell) RegisterTools(tools map[string]Tool) *Shell {
	for _, t := range tools {
		s.Register(t)
	}
	return s
}

// ExecuteCommand runs cmd[0] with cmd[1:] as arguments.
func (s *Shell) ExecuteCommand(ctx context.Context, cmd []string, opts ports.ExecOptions) domain.OperationResult {
	if len(cmd) == 0 {
		return domain.Failed(nil, "%v", domain.ErrEmptyCommand)
	}
	name, args := cmd[0], cmd[1:]
	env := envPairs(opts.Env)
	if tool, ok := s.tools[name]; ok {
		name = tool.Command
		args = append(append([]string(nil), tool.Args...), args...)
		env = append(envPairs(tool.Environment), env...)
	}
	return s.proc.run(ctx, name, args, opts.Cwd, opts.Timeout, env, opts.ShowOutput)
}

// Interpreter implements ports.InterpreterDriver with a Python executable.
type Interpreter struct {
	proc   *process
	binary string
}

// NewInterpreter creates a driver that runs binary (e.g. "python3").
func NewInterpreter(binary string, opts ...Option) *Interpreter {
	if binary == "" {
		binary = "python3"
	}
	return &Interpreter{proc: newProcess(opts), binary: binary}
}

// RunScript runs a script file.
func (i *Interpreter) RunScript(ctx context.Context, path string, args []string, opts ports.ExecOptions) domain.OperationResult {
	argv := append([]string{path}, args...)
	return i.proc.run(ctx, i.binary, argv, opts.Cwd, opts.Timeout, envPairs(opts.Env), opts.ShowOutput)
}

// RunCode runs inline code with -c.
func (i *Interpreter) RunCode(ctx context.Context, code string, opts ports.ExecOptions) domain.OperationResult {
	return i.proc.run(ctx, i.binary, []string{"-c", code}, opts.Cwd, opts.Timeout, envPairs(opts.Env), opts.ShowOutput)
}
