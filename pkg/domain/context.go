package domain

import "strings"

// WorkflowContext is read-only configuration threaded through graph construction.
type WorkflowContext struct {
	ContestName   string `json:"contest_name,omitempty" yaml:"contest_name,omitempty" mapstructure:"contest_name"`
	ProblemName   string `json:"problem_name,omitempty" yaml:"problem_name,omitempty" mapstructure:"problem_name"`
	Language      string `json:"language,omitempty" yaml:"language,omitempty" mapstructure:"language"`
	EnvType       string `json:"env_type,omitempty" yaml:"env_type,omitempty" mapstructure:"env_type"`
	CommandType   string `json:"command_type,omitempty" yaml:"command_type,omitempty" mapstructure:"command_type"`
	WorkspacePath string `json:"workspace_path,omitempty" yaml:"workspace_path,omitempty" mapstructure:"workspace_path"`

	// Extra holds additional {key} substitutions.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

// Values returns every non-empty substitution key and its value.
func (c WorkflowContext) Values() map[string]string {
	vals := make(map[string]string, 6+len(c.Extra))
	for k, v := range c.Extra {
		vals[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			vals[k] = v
		}
	}
	set("contest_name", c.ContestName)
	set("problem_name", c.ProblemName)
	set("language", c.Language)
	set("env_type", c.EnvType)
	set("command_type", c.CommandType)
	set("workspace_path", c.WorkspacePath)
	return vals
}

// Format expands {key} references using the context values.
// Unknown keys are kept verbatim.
func (c WorkflowContext) Format(s string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	vals := c.Values()
	if len(vals) == 0 {
		return s
	}
	pairs := make([]string, 0, len(vals)*2)
	for k, v := range vals {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
