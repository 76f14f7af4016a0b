package ports

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// FileDriver performs filesystem operations.
// Every method encodes failures into the returned result and never panics.
type FileDriver interface {
	Exists(ctx context.Context, path string) domain.OperationResult
	Mkdir(ctx context.Context, path string) domain.OperationResult
	Touch(ctx context.Context, path string) domain.OperationResult
	Copy(ctx context.Context, src, dst string) domain.OperationResult
	CopyTree(ctx context.Context, src, dst string) domain.OperationResult
	Move(ctx context.Context, src, dst string) domain.OperationResult
	Remove(ctx context.Context, path string) domain.OperationResult
	RemoveTree(ctx context.Context, path string) domain.OperationResult
	Read(ctx context.Context, path string) domain.OperationResult
	Write(ctx context.Context, path, content string) domain.OperationResult
}

// ExecOptions tune a single process invocation.
// A zero Timeout means the driver default.
type ExecOptions struct {
	Cwd        string
	Timeout    time.Duration
	ShowOutput bool
	Env        map[string]string
}

// ShellDriver runs commands on the host.
type ShellDriver interface {
	ExecuteCommand(ctx context.Context, cmd []string, opts ExecOptions) domain.OperationResult
}

// ContainerDriver manages containers.
type ContainerDriver interface {
	Run(ctx context.Context, image, name string, args []string, opts ExecOptions) domain.OperationResult
	Stop(ctx context.Context, name string) domain.OperationResult
	Remove(ctx context.Context, name string) domain.OperationResult
	ExecIn(ctx context.Context, name string, cmd []string, opts ExecOptions) domain.OperationResult
	Copy(ctx context.Context, src, dst string) domain.OperationResult
	IsRunning(ctx context.Context, name string) (bool, error)
}

// InterpreterDriver runs scripts or inline code with a language interpreter.
type InterpreterDriver interface {
	RunScript(ctx context.Context, path string, args []string, opts ExecOptions) domain.OperationResult
	RunCode(ctx context.Context, code string, opts ExecOptions) domain.OperationResult
}

// DriverSet is the explicit table of drivers handed to the engines.
// A nil entry means the kind is unavailable.
type DriverSet struct {
	File        FileDriver
	Shell       ShellDriver
	Container   ContainerDriver
	Interpreter InterpreterDriver
}

// Require checks that a driver exists for every kind in kinds.
func (d DriverSet) Require(kinds ...domain.RequestKind) error {
	for _, k := range kinds {
		var ok bool
		switch k {
		case domain.KindFile:
			ok = d.File != nil
		case domain.KindShell:
			ok = d.Shell != nil
		case domain.KindContainer:
			ok = d.Container != nil
		case domain.KindInterpreter:
			ok = d.Interpreter != nil
		case domain.KindComposite:
			ok = true
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrDriverUnavailable, k)
		}
	}
	return nil
}

// Dispatcher executes a single Request through the driver layer.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.Request) domain.OperationResult
}
