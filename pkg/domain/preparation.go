package domain

// FactKind classifies an environment requirement.
type FactKind string

const (
	FactDirectory FactKind = "directory"
	FactContainer FactKind = "container"
	FactImage     FactKind = "image"
)

// PathState is what the inspector observed at a path.
type PathState struct {
	Exists bool `json:"exists" yaml:"exists"`
	IsDir  bool `json:"is_dir" yaml:"is_dir"`
	IsFile bool `json:"is_file" yaml:"is_file"`
}

// ContainerStatus is the observed state of a named container.
type ContainerStatus string

const (
	ContainerRunning ContainerStatus = "running"
	ContainerStopped ContainerStatus = "stopped"
	ContainerMissing ContainerStatus = "missing"
)

// Requirement is an environment fact a node needs before it can run.
type Requirement struct {
	Kind   FactKind `json:"kind" yaml:"kind"`
	Target string   `json:"target" yaml:"target"`
	NodeID string   `json:"node_id" yaml:"node_id"`
	// Image is the image that can recreate a required container, when known.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
	// Observed describes what the inspector found, e.g. "absent" or "stopped".
	Observed string `json:"observed,omitempty" yaml:"observed,omitempty"`
	// Preparable is false when no preparation request can close the gap.
	Preparable bool `json:"preparable" yaml:"preparable"`
}

// PreparationPlan is the diff between required and observed state.
type PreparationPlan struct {
	Missing []Requirement `json:"missing" yaml:"missing"`
	// Errors lists inspection failures that left a fact undecided.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// FittingSummary is the outcome of fitting a graph to its environment.
type FittingSummary struct {
	PreparationNeeded      bool              `json:"preparation_needed" yaml:"preparation_needed"`
	Missing                []Requirement     `json:"missing" yaml:"missing"`
	PreparationRequests    []Request         `json:"-" yaml:"-"`
	SuccessfulPreparations int               `json:"successful_preparations" yaml:"successful_preparations"`
	PreparationResults     []OperationResult `json:"preparation_results" yaml:"preparation_results"`
	Errors                 []string          `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// FailedPreparations returns the preparation results that did not succeed.
func (s *FittingSummary) FailedPreparations() []OperationResult {
	var out []OperationResult
	for _, r := range s.PreparationResults {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}
