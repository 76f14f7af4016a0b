package system

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Inspector implements ports.Inspector with os.Stat and docker inspect.
type Inspector struct {
	docker *Docker
}

// NewInspector creates an inspector. A nil docker disables container queries.
func NewInspector(docker *Docker) *Inspector {
	return &Inspector{docker: docker}
}

// CheckState stats path. A missing path is not an error.
func (i *Inspector) CheckState(_ context.Context, path string) (domain.PathState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.PathState{}, nil
		}
		return domain.PathState{}, err
	}
	return domain.PathState{Exists: true, IsDir: info.IsDir(), IsFile: info.Mode().IsRegular()}, nil
}

// ContainerStatus delegates to docker.
func (i *Inspector) ContainerStatus(ctx context.Context, name string) (domain.ContainerStatus, error) {
	if i.docker == nil {
		return domain.ContainerMissing, domain.ErrDriverUnavailable
	}
	return i.docker.ContainerStatus(ctx, name)
}

// ImageExists delegates to docker.
func (i *Inspector) ImageExists(ctx context.Context, image string) (bool, error) {
	if i.docker == nil {
		return false, domain.ErrDriverUnavailable
	}
	return i.docker.ImageExists(ctx, image)
}

// Drivers assembles the production driver set for a workspace.
// Kinds whose executable is not on PATH are left nil so the engine can
// report them as unavailable before running anything.
func Drivers(workspace string, opts ...Option) (ports.DriverSet, *Inspector) {
	opts = append([]Option{WithBaseDir(workspace)}, opts...)
	set := ports.DriverSet{
		File:  NewFiles(workspace),
		Shell: NewShell(opts...),
	}
	for _, bin := range []string{"python3", "python"} {
		if _, err := exec.LookPath(bin); err == nil {
			set.Interpreter = NewInterpreter(bin, opts...)
			break
		}
	}
	var docker *Docker
	if _, err := exec.LookPath("docker"); err == nil {
		docker = NewDocker("docker", opts...)
		set.Container = docker
	}
	return set, NewInspector(docker)
}
