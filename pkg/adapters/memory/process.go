package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// CommandFunc produces the result of a scripted command.
type CommandFunc func(ctx context.Context, args []string) domain.OperationResult

// Shell implements ports.ShellDriver with scripted commands.
//
// Built in: echo, true, false, sleep <seconds>, exit <code>.
// Anything else must be registered with Handle or fails as "command not found".
type Shell struct {
	mu       sync.Mutex
	handlers map[string]CommandFunc
	calls    [][]string
}

// NewShell creates a scripted shell with the built-in commands.
func NewShell() *Shell {
	s := &Shell{handlers: make(map[string]CommandFunc)}
	s.handlers["echo"] = func(_ context.Context, args []string) domain.OperationResult {
		return domain.OperationResult{Success: true, Stdout: strings.Join(args, " ") + "\n"}
	}
	s.handlers["true"] = func(context.Context, []string) domain.OperationResult {
		return domain.OperationResult{Success: true}
	}
	s.handlers["false"] = func(context.Context, []string) domain.OperationResult {
		return exitWith(1, "")
	}
	s.handlers["exit"] = func(_ context.Context, args []string) domain.OperationResult {
		code := 0
		if len(args) > 0 {
			code, _ = strconv.Atoi(args[0])
		}
		if code == 0 {
			return domain.OperationResult{Success: true}
		}
		return exitWith(code, "")
	}
	s.handlers["sleep"] = func(ctx context.Context, args []string) domain.OperationResult {
		secs := 0.0
		if len(args) > 0 {
			secs, _ = strconv.ParseFloat(args[0], 64)
		}
		select {
		case <-time.After(time.Duration(secs * float64(time.Second))):
			return domain.OperationResult{Success: true}
		case <-ctx.Done():
			return domain.Failed(nil, "execution failed: %v", ctx.Err())
		}
	}
	return s
}

func exitWith(code int, stderr string) domain.OperationResult {
	res := domain.Failed(nil, "execution failed: exit status %d. Stderr: %s", code, stderr)
	res.ExitCode = code
	res.Stderr = stderr
	return res
}

// Handle registers fn for commands whose first element is name.
func (s *Shell) Handle(name string, fn CommandFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = fn
}

// Respond registers a fixed stdout for name.
func (s *Shell) Respond(name, stdout string) {
	s.Handle(name, func(context.Context, []string) domain.OperationResult {
		return domain.OperationResult{Success: true, Stdout: stdout}
	})
}

// Calls returns every command line received, in order.
func (s *Shell) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// ExecuteCommand runs a scripted command.
func (s *Shell) ExecuteCommand(ctx context.Context, cmd []string, opts ports.ExecOptions) domain.OperationResult {
	if len(cmd) == 0 {
		return domain.Failed(nil, "%v", domain.ErrEmptyCommand)
	}
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), cmd...))
	fn, ok := s.handlers[cmd[0]]
	s.mu.Unlock()

	if !ok {
		res := domain.Failed(nil, "execution failed: exec: %q: executable file not found in $PATH", cmd[0])
		res.ExitCode = 127
		return res
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	return fn(ctx, cmd[1:])
}

// Interpreter implements ports.InterpreterDriver by recording what it was asked to run.
type Interpreter struct {
	mu      sync.Mutex
	Stdout  string
	Fail    bool
	scripts []string
	code    []string
}

// NewInterpreter creates an interpreter mock that prints stdout on every call.
func NewInterpreter(stdout string) *Interpreter {
	return &Interpreter{Stdout: stdout}
}

// RunScript records the script path.
func (i *Interpreter) RunScript(_ context.Context, path string, args []string, _ ports.ExecOptions) domain.OperationResult {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.scripts = append(i.scripts, strings.TrimSpace(path+" "+strings.Join(args, " ")))
	return i.result()
}

// RunCode records the code.
func (i *Interpreter) RunCode(_ context.Context, code string, _ ports.ExecOptions) domain.OperationResult {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.code = append(i.code, code)
	return i.result()
}

func (i *Interpreter) result() domain.OperationResult {
	if i.Fail {
		return exitWith(1, "Traceback (most recent call last)")
	}
	return domain.OperationResult{Success: true, Stdout: i.Stdout}
}

// Scripts returns the recorded script invocations.
func (i *Interpreter) Scripts() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.scripts...)
}

// Code returns the recorded inline code.
func (i *Interpreter) Code() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.code...)
}
