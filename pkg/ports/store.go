package ports

import (
	"context"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// ReportStore persists run reports.
type ReportStore interface {
	// Save persists the report under report.RunID.
	Save(ctx context.Context, report *domain.Report) error

	// Load retrieves a report.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.Report, error)

	// Delete removes a report. Deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the ids of stored runs.
	List(ctx context.Context) ([]string, error)
}
