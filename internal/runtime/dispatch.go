package runtime

import (
	"context"
	"strings"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Dispatch executes a single request through the driver layer.
// It satisfies ports.Dispatcher so the fitting engine can reuse it.
func (e *Engine) Dispatch(ctx context.Context, req domain.Request) (res domain.OperationResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = domain.Failed(req, "driver panic: %v", p)
		}
		res.Request = req
		if res.StartedAt.IsZero() {
			res.StartedAt = start
		}
		if res.Duration == 0 {
			res.Duration = time.Since(start)
		}
	}()

	switch r := req.(type) {
	case *domain.FileRequest:
		return e.dispatchFile(ctx, r)
	case *domain.ShellRequest:
		if e.drivers.Shell == nil {
			return unavailable(r)
		}
		return e.drivers.Shell.ExecuteCommand(ctx, r.Cmd, ports.ExecOptions{
			Cwd:        r.Cwd,
			Timeout:    r.Timeout,
			ShowOutput: r.ShowOutput,
		})
	case *domain.ContainerRequest:
		return e.dispatchContainer(ctx, r)
	case *domain.InterpreterRequest:
		if e.drivers.Interpreter == nil {
			return unavailable(r)
		}
		opts := ports.ExecOptions{Cwd: r.Cwd, Timeout: r.Timeout, ShowOutput: r.ShowOutput}
		if r.Script != "" {
			return e.drivers.Interpreter.RunScript(ctx, r.Script, r.Args, opts)
		}
		return e.drivers.Interpreter.RunCode(ctx, r.Code, opts)
	case *domain.CompositeRequest:
		return e.executeComposite(ctx, r)
	case nil:
		return domain.Failed(nil, "nil request")
	default:
		return domain.Failed(req, "unsupported request type %T", req)
	}
}

func (e *Engine) dispatchFile(ctx context.Context, r *domain.FileRequest) domain.OperationResult {
	fd := e.drivers.File
	if fd == nil {
		return unavailable(r)
	}
	switch r.Op {
	case domain.FileMkdir:
		return fd.Mkdir(ctx, r.Path)
	case domain.FileTouch:
		return fd.Touch(ctx, r.Path)
	case domain.FileCopy:
		return fd.Copy(ctx, r.Path, r.Dst)
	case domain.FileCopyTree:
		return fd.CopyTree(ctx, r.Path, r.Dst)
	case domain.FileMove, domain.FileMoveTree:
		return fd.Move(ctx, r.Path, r.Dst)
	case domain.FileRemove:
		return fd.Remove(ctx, r.Path)
	case domain.FileRmtree:
		return fd.RemoveTree(ctx, r.Path)
	case domain.FileRead:
		return fd.Read(ctx, r.Path)
	case domain.FileWrite:
		return fd.Write(ctx, r.Path, r.Content)
	}
	return domain.Failed(r, "unsupported file operation %q", r.Op)
}

func (e *Engine) dispatchContainer(ctx context.Context, r *domain.ContainerRequest) domain.OperationResult {
	cd := e.drivers.Container
	if cd == nil {
		return unavailable(r)
	}
	opts := ports.ExecOptions{Timeout: r.Timeout, ShowOutput: r.ShowOutput}
	switch r.Op {
	case domain.ContainerRun:
		return cd.Run(ctx, r.Image, r.Container, r.Cmd, opts)
	case domain.ContainerExec:
		return cd.ExecIn(ctx, r.Container, r.Cmd, opts)
	case domain.ContainerStop:
		return cd.Stop(ctx, r.Container)
	case domain.ContainerRemove:
		return cd.Remove(ctx, r.Container)
	case domain.ContainerCopy:
		return cd.Copy(ctx, r.Src, r.Dst)
	}
	return domain.Failed(r, "unsupported container operation %q", r.Op)
}

func unavailable(r domain.Request) domain.OperationResult {
	return domain.Failed(r, "%v: %s", domain.ErrDriverUnavailable, r.Kind())
}

// executeComposite runs sub-requests in order and stops at the first failure
// whose request is not failure-allowed.
func (e *Engine) executeComposite(ctx context.Context, c *domain.CompositeRequest) domain.OperationResult {
	out := domain.OperationResult{
		Success:  true,
		Metadata: map[string]any{"leaf_count": c.LeafCount()},
	}
	var stdout, stderr strings.Builder

	for i, sub := range c.Requests {
		res := e.Dispatch(ctx, sub)
		out.SubResults = append(out.SubResults, res)
		stdout.WriteString(res.Stdout)
		stderr.WriteString(res.Stderr)

		if res.Success {
			continue
		}
		if sub.Meta().AllowFailure {
			e.logger.Debug("composite sub-request failed, continuing", "index", i, "request", sub.Meta().Name)
			continue
		}

		suggestion := res.Suggestion
		if suggestion == "" || res.Category == domain.CategoryUnknown {
			suggestion = "fix sub-request " + sub.Meta().Name + " or mark its step allow_failure"
		}
		failure := &domain.CompositeError{
			Index:       i,
			RequestName: sub.Meta().Name,
			Cause:       failureMessage(res),
			Suggestion:  suggestion,
		}
		out.Success = false
		out.CompositeFailure = failure
		out.ErrorMessage = failure.Error()
		out.Category = res.Category
		out.Suggestion = suggestion
		out.ExitCode = res.ExitCode
		break
	}

	out.Stdout = stdout.String()
	out.Stderr = stderr.String()
	out.Metadata["executed"] = len(out.SubResults)
	return out
}
