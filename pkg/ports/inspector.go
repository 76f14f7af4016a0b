package ports

import (
	"context"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// Inspector answers read-only questions about the environment.
// Implementations must never create or modify the inspected resource.
type Inspector interface {
	// CheckState reports whether path exists and whether it is a file or directory.
	CheckState(ctx context.Context, path string) (domain.PathState, error)

	// ContainerStatus reports whether the named container is running, stopped or missing.
	ContainerStatus(ctx context.Context, name string) (domain.ContainerStatus, error)

	// ImageExists reports whether the image is available locally.
	ImageExists(ctx context.Context, image string) (bool, error)
}
