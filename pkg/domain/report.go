package domain

import "time"

// NodeReport is the per-node line of a run report.
type NodeReport struct {
	ID          string           `json:"id" yaml:"id"`
	State       NodeState        `json:"state" yaml:"state"`
	Message     string           `json:"message,omitempty" yaml:"message,omitempty"`
	RequestKind RequestKind      `json:"request_kind" yaml:"request_kind"`
	RequestName string           `json:"request_name,omitempty" yaml:"request_name,omitempty"`
	Result      *OperationResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// Counts aggregates node states.
type Counts struct {
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Pending   int `json:"pending" yaml:"pending"`
}

// Total returns the number of nodes counted.
func (c Counts) Total() int { return c.Succeeded + c.Failed + c.Skipped + c.Pending }

// Report is the user-visible outcome of one invocation.
type Report struct {
	RunID       string          `json:"run_id" yaml:"run_id"`
	Workspace   string          `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time       `json:"finished_at" yaml:"finished_at"`
	Success     bool            `json:"success" yaml:"success"`
	Counts      Counts          `json:"counts" yaml:"counts"`
	Nodes       []NodeReport    `json:"nodes" yaml:"nodes"`
	BuildErrors []string        `json:"build_errors,omitempty" yaml:"build_errors,omitempty"`
	Warnings    []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Fitting     *FittingSummary `json:"fitting,omitempty" yaml:"fitting,omitempty"`

	// Sealed holds the encrypted full report when the store is wrapped with encryption.
	// Only the envelope fields above it stay readable.
	Sealed string `json:"sealed,omitempty" yaml:"sealed,omitempty"`
}

// Results returns the operation results of executed nodes in report order.
func (r *Report) Results() []OperationResult {
	var out []OperationResult
	for _, n := range r.Nodes {
		if n.Result != nil {
			out = append(out, *n.Result)
		}
	}
	return out
}

// Node returns the report line for id.
func (r *Report) Node(id string) (NodeReport, bool) {
	for _, n := range r.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeReport{}, false
}

// Tally recomputes Counts and Success from Nodes.
// A run succeeds when no node failed without allow_failure and nothing was skipped.
func (r *Report) Tally(allowed func(id string) bool) {
	r.Counts = Counts{}
	r.Success = true
	for _, n := range r.Nodes {
		switch n.State {
		case NodeSucceeded:
			r.Counts.Succeeded++
		case NodeFailed:
			r.Counts.Failed++
			if allowed == nil || !allowed(n.ID) {
				r.Success = false
			}
		case NodeSkipped:
			r.Counts.Skipped++
			r.Success = false
		default:
			r.Counts.Pending++
			r.Success = false
		}
	}
}
