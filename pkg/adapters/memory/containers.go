package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

type container struct {
	image   string
	running bool
}

// Containers implements ports.ContainerDriver over an in-memory runtime.
// Exec echoes the command line as stdout.
type Containers struct {
	mu         sync.RWMutex
	images     map[string]bool
	containers map[string]*container
	calls      []string
}

// NewContainers creates a runtime where the given images are available locally.
func NewContainers(images ...string) *Containers {
	c := &Containers{images: make(map[string]bool), containers: make(map[string]*container)}
	for _, img := range images {
		c.images[img] = true
	}
	return c
}

// Seed registers an existing container.
func (c *Containers) Seed(name, image string, running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.containers[name] = &container{image: image, running: running}
}

// Calls returns the performed operations as "op name" strings.
func (c *Containers) Calls() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.calls...)
}

// Run starts a container from a local image.
func (c *Containers) Run(_ context.Context, image, name string, _ []string, _ ports.ExecOptions) domain.OperationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "run "+name)
	if !c.images[image] {
		return domain.Failed(nil, "docker run: unable to find image %q locally", image)
	}
	if _, ok := c.containers[name]; ok && name != "" {
		return domain.Failed(nil, "docker run: container name %q is already in use", name)
	}
	c.containers[name] = &container{image: image, running: true}
	return domain.OperationResult{Success: true, Stdout: name + "\n"}
}

// Stop stops a running container.
func (c *Containers) Stop(_ context.Context, name string) domain.OperationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "stop "+name)
	ct, ok := c.containers[name]
	if !ok {
		return domain.Failed(nil, "docker stop: no such container: %s", name)
	}
	ct.running = false
	return domain.OperationResult{Success: true}
}

// Remove deletes a stopped container.
func (c *Containers) Remove(_ context.Context, name string) domain.OperationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "rm "+name)
	ct, ok := c.containers[name]
	if !ok {
		return domain.Failed(nil, "docker rm: no such container: %s", name)
	}
	if ct.running {
		return domain.Failed(nil, "docker rm: container %s is running, stop it first", name)
	}
	delete(c.containers, name)
	return domain.OperationResult{Success: true}
}

// ExecIn runs cmd inside a running container.
func (c *Containers) ExecIn(_ context.Context, name string, cmd []string, _ ports.ExecOptions) domain.OperationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "exec "+name)
	ct, ok := c.containers[name]
	if !ok || !ct.running {
		return domain.Failed(nil, "docker exec: container %s is not running", name)
	}
	return domain.OperationResult{Success: true, Stdout: strings.Join(cmd, " ") + "\n"}
}

// Copy accepts any transfer that names an existing container on one side.
func (c *Containers) Copy(_ context.Context, src, dst string) domain.OperationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "cp "+src+" "+dst)
	for _, side := range []string{src, dst} {
		if name, _, ok := strings.Cut(side, ":"); ok {
			if _, exists := c.containers[name]; exists {
				return domain.OperationResult{Success: true}
			}
		}
	}
	return domain.Failed(nil, "docker cp: no such container in %s or %s", src, dst)
}

// IsRunning reports whether name is running.
func (c *Containers) IsRunning(_ context.Context, name string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.containers[name]
	return ok && ct.running, nil
}

// ContainerStatus reports running, stopped or missing.
func (c *Containers) ContainerStatus(_ context.Context, name string) (domain.ContainerStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ct, ok := c.containers[name]
	switch {
	case !ok:
		return domain.ContainerMissing, nil
	case ct.running:
		return domain.ContainerRunning, nil
	default:
		return domain.ContainerStopped, nil
	}
}

// ImageExists reports whether image is available.
func (c *Containers) ImageExists(_ context.Context, image string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.images[image], nil
}

// Inspector combines an FS and a container runtime into a ports.Inspector.
type Inspector struct {
	FS         *FS
	Containers *Containers
}

// NewInspector creates an inspector. Either side may be nil.
func NewInspector(fs *FS, containers *Containers) *Inspector {
	return &Inspector{FS: fs, Containers: containers}
}

// CheckState delegates to the FS.
func (i *Inspector) CheckState(ctx context.Context, path string) (domain.PathState, error) {
	if i.FS == nil {
		return domain.PathState{}, domain.ErrDriverUnavailable
	}
	return i.FS.CheckState(ctx, path)
}

// ContainerStatus delegates to the container runtime.
func (i *Inspector) ContainerStatus(ctx context.Context, name string) (domain.ContainerStatus, error) {
	if i.Containers == nil {
		return domain.ContainerMissing, domain.ErrDriverUnavailable
	}
	return i.Containers.ContainerStatus(ctx, name)
}

// ImageExists delegates to the container runtime.
func (i *Inspector) ImageExists(ctx context.Context, image string) (bool, error) {
	if i.Containers == nil {
		return false, domain.ErrDriverUnavailable
	}
	return i.Containers.ImageExists(ctx, image)
}
