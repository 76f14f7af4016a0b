package domain

import "fmt"

// NodeState is the lifecycle state of a node during one execution.
type NodeState string

const (
	NodePending   NodeState = "PENDING"
	NodeRunning   NodeState = "RUNNING"
	NodeSucceeded NodeState = "SUCCEEDED"
	NodeFailed    NodeState = "FAILED"
	NodeSkipped   NodeState = "SKIPPED"
)

var allowedTransitions = map[NodeState][]NodeState{
	NodePending: {NodeRunning, NodeSkipped},
	NodeRunning: {NodeSucceeded, NodeFailed},
}

// IsTerminal reports whether no further transition is possible.
func (s NodeState) IsTerminal() bool {
	return s == NodeSucceeded || s == NodeFailed || s == NodeSkipped
}

// Transition validates a state change for node id.
func Transition(id string, from, to NodeState) error {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("node %q: illegal transition %s -> %s", id, from, to)
}
