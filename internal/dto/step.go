package dto

// Step is the wire form of a workflow step.
// It uses "mapstructure" tags so YAML, JSON and TOML documents decode alike.
type Step struct {
	Type         string   `json:"type" mapstructure:"type"`
	Cmd          []string `json:"cmd" mapstructure:"cmd"`
	AllowFailure bool     `json:"allow_failure" mapstructure:"allow_failure"`
	ShowOutput   bool     `json:"show_output" mapstructure:"show_output"`
	Name         string   `json:"name" mapstructure:"name"`
	DependsOn    []string `json:"depends_on" mapstructure:"depends_on"`
	Cwd          string   `json:"cwd" mapstructure:"cwd"`

	// Timeout is a Go duration string ("30s") or a number of seconds.
	Timeout any `json:"timeout" mapstructure:"timeout"`
}

// Workflow is the map form of a workflow document.
// A document may also be a bare list of steps.
type Workflow struct {
	Context map[string]any   `json:"context" mapstructure:"context"`
	Steps   []map[string]any `json:"steps" mapstructure:"steps"`
}
