package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter   EventType = "node_enter"
	EventNodeLeave   EventType = "node_leave"
	EventNodeSkip    EventType = "node_skip"
	EventPreparation EventType = "preparation"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
}

// NodeEvent reports a node entering, leaving or being skipped.
type NodeEvent struct {
	EventBase
	NodeID      string        `json:"node_id"`
	RequestKind RequestKind   `json:"request_kind"`
	State       NodeState     `json:"state"`
	Message     string        `json:"message,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// PreparationEvent reports one executed preparation request.
type PreparationEvent struct {
	EventBase
	RequestName string `json:"request_name"`
	Success     bool   `json:"success"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks may be called from several goroutines when execution is concurrent.
type LifecycleHooks struct {
	OnNodeEnter   func(context.Context, *NodeEvent)
	OnNodeLeave   func(context.Context, *NodeEvent)
	OnNodeSkip    func(context.Context, *NodeEvent)
	OnPreparation func(context.Context, *PreparationEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:   chainNode(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:   chainNode(h.OnNodeLeave, other.OnNodeLeave),
		OnNodeSkip:    chainNode(h.OnNodeSkip, other.OnNodeSkip),
		OnPreparation: chainPrep(h.OnPreparation, other.OnPreparation),
	}
}

func chainNode(a, b func(context.Context, *NodeEvent)) func(context.Context, *NodeEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainPrep(a, b func(context.Context, *PreparationEvent)) func(context.Context, *PreparationEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *PreparationEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
