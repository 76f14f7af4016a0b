package domain

// Workflow is a decoded workflow document: the context plus its steps.
type Workflow struct {
	Context WorkflowContext `json:"context" yaml:"context"`
	Steps   []Step          `json:"steps" yaml:"steps"`
}
