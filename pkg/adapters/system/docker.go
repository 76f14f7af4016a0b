package system

import (
	"context"
	"strings"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Docker implements ports.ContainerDriver by invoking the docker CLI.
type Docker struct {
	proc   *process
	binary string
}

// NewDocker creates a driver for binary ("docker" when empty; "podman" also works).
func NewDocker(binary string, opts ...Option) *Docker {
	if binary == "" {
		binary = "docker"
	}
	return &Docker{proc: newProcess(opts), binary: binary}
}

func (d *Docker) cli(ctx context.Context, opts ports.ExecOptions, args ...string) domain.OperationResult {
	return d.proc.run(ctx, d.binary, args, "", opts.Timeout, envPairs(opts.Env), opts.ShowOutput)
}

// Run starts a detached container.
func (d *Docker) Run(ctx context.Context, image, name string, args []string, opts ports.ExecOptions) domain.OperationResult {
	argv := []string{"run", "-d"}
	if name != "" {
		argv = append(argv, "--name", name)
	}
	argv = append(argv, image)
	return d.cli(ctx, opts, append(argv, args...)...)
}

// Stop stops a container.
func (d *Docker) Stop(ctx context.Context, name string) domain.OperationResult {
	return d.cli(ctx, ports.ExecOptions{}, "stop", name)
}

// Remove removes a container.
func (d *Docker) Remove(ctx context.Context, name string) domain.OperationResult {
	return d.cli(ctx, ports.ExecOptions{}, "rm", name)
}

// ExecIn runs cmd inside a running container.
func (d *Docker) ExecIn(ctx context.Context, name string, cmd []string, opts ports.ExecOptions) domain.OperationResult {
	argv := []string{"exec"}
	if opts.Cwd != "" {
		argv = append(argv, "-w", opts.Cwd)
	}
	argv = append(argv, name)
	return d.cli(ctx, opts, append(argv, cmd...)...)
}

// Copy copies between the host and a container ("name:/path" on one side).
func (d *Docker) Copy(ctx context.Context, src, dst string) domain.OperationResult {
	return d.cli(ctx, ports.ExecOptions{}, "cp", src, dst)
}

// IsRunning reports whether the container is running. A missing container is not an error.
func (d *Docker) IsRunning(ctx context.Context, name string) (bool, error) {
	status, err := d.ContainerStatus(ctx, name)
	return status == domain.ContainerRunning, err
}

// ContainerStatus inspects the container state without changing it.
func (d *Docker) ContainerStatus(ctx context.Context, name string) (domain.ContainerStatus, error) {
	res := d.cli(ctx, ports.ExecOptions{}, "inspect", "-f", "{{.State.Running}}", name)
	if !res.Success {
		if strings.Contains(strings.ToLower(res.Stderr), "no such") {
			return domain.ContainerMissing, nil
		}
		return domain.ContainerMissing, &inspectError{target: name, msg: res.ErrorMessage}
	}
	if strings.TrimSpace(res.Stdout) == "true" {
		return domain.ContainerRunning, nil
	}
	return domain.ContainerStopped, nil
}

// ImageExists reports whether the image is present locally.
func (d *Docker) ImageExists(ctx context.Context, image string) (bool, error) {
	res := d.cli(ctx, ports.ExecOptions{}, "image", "inspect", image)
	if res.Success {
		return true, nil
	}
	if strings.Contains(strings.ToLower(res.Stderr), "no such") {
		return false, nil
	}
	return false, &inspectError{target: image, msg: res.ErrorMessage}
}

type inspectError struct {
	target string
	msg    string
}

func (e *inspectError) Error() string { return "inspect " + e.target + ": " + e.msg }
