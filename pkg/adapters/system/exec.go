package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// DefaultTimeout bounds a process when neither the request nor the driver sets one.
const DefaultTimeout = 5 * time.Minute

// process is the shared exec backend of the shell, interpreter and docker drivers.
type process struct {
	baseDir string
	timeout time.Duration
	env     []string
	output  io.Writer
	logger  *slog.Logger
}

func (p *process) dir(cwd string) string {
	switch {
	case cwd == "":
		return p.baseDir
	case filepath.IsAbs(cwd) || p.baseDir == "":
		return cwd
	}
	return filepath.Join(p.baseDir, cwd)
}

// run executes name with args and encodes every failure into the result.
func (p *process) run(ctx context.Context, name string, args []string, cwd string, timeout time.Duration, env []string, show bool) domain.OperationResult {
	if timeout <= 0 {
		timeout = p.timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = p.dir(cwd)
	if len(p.env) > 0 || len(env) > 0 {
		cmd.Env = append(append(cmd.Environ(), p.env...), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if show && p.output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, p.output)
		cmd.Stderr = io.MultiWriter(&stderr, p.output)
	}

	start := time.Now()
	err := cmd.Run()
	res := domain.OperationResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		StartedAt: start,
		Duration:  time.Since(start),
		Metadata:  map[string]any{"command": name},
	}
	p.logger.Debug("process finished", "command", name, "duration", res.Duration, "err", err)

	if err == nil {
		res.Success = true
		return res
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w (after %s)", ctxErr, timeout)
	}
	failed := domain.Failed(nil, "execution failed: %v. Stderr: %s", err, stderr.String())
	res.ErrorMessage = failed.ErrorMessage
	res.Category = failed.Category
	res.Suggestion = failed.Suggestion
	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		res.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(err, exec.ErrNotFound) {
		res.ExitCode = 127
	}
	return res
}
