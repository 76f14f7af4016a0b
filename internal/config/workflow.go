package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/stepgraph/internal/compiler"
	"github.com/aretw0/stepgraph/pkg/domain"
)

// FormatFor picks the workflow decoder from a file extension. YAML is the default.
func FormatFor(path string) compiler.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return compiler.FormatJSON
	case ".toml":
		return compiler.FormatTOML
	default:
		return compiler.FormatYAML
	}
}

// LoadWorkflow reads and decodes a workflow file.
func LoadWorkflow(path string) (*domain.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}
	wf, err := compiler.NewParser().Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}
