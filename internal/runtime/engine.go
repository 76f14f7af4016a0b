package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/puzpuzpuz/xsync/v3"
)

// Engine walks an Execution Graph in dependency order and dispatches each
// node's Request to the matching driver.
type Engine struct {
	drivers     ports.DriverSet
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	concurrency int
	runID       string
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithConcurrency lets up to n independent nodes run at once. Values below 2 mean sequential.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithRunID tags emitted events with a run id.
func WithRunID(id string) EngineOption {
	return func(e *Engine) {
		e.runID = id
	}
}

// NewEngine creates an engine over an explicit driver set.
func NewEngine(drivers ports.DriverSet, opts ...EngineOption) *Engine {
	e := &Engine{
		drivers:     drivers,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// record is the per-node entry of the result store.
type record struct {
	state   domain.NodeState
	result  *domain.OperationResult
	message string
}

// execution holds the state of one Execute call. The graph is only read;
// everything written goes to the result store.
type execution struct {
	engine  *Engine
	graph   *domain.Graph
	store   *xsync.MapOf[string, record]
	aliases map[string]string
}

// Execute runs every node of g and returns the per-node report.
// Node failures are data in the report; an error is returned only when the
// graph cannot be executed at all (cycle, missing driver).
func (e *Engine) Execute(ctx context.Context, g *domain.Graph) (*domain.Report, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if err := e.drivers.Require(requiredKinds(g)...); err != nil {
		return nil, err
	}

	x := &execution{
		engine:  e,
		graph:   g,
		store:   xsync.NewMapOf[string, record](),
		aliases: make(map[string]string, g.Len()),
	}
	for _, n := range g.Nodes() {
		x.store.Store(n.ID, record{state: domain.NodePending})
		x.aliases[n.ID] = n.ID
	}
	for _, n := range g.Nodes() {
		auto := fmt.Sprintf("step_%d", n.Order)
		if _, taken := x.aliases[auto]; !taken {
			x.aliases[auto] = n.ID
		}
	}

	started := time.Now()
	e.logger.Info("execution started", "nodes", len(order), "concurrency", e.concurrency)

	if e.concurrency > 1 {
		x.runConcurrent(ctx, order)
	} else {
		x.runSequential(ctx, order)
	}

	report := x.report(order)
	report.StartedAt = started
	report.FinishedAt = time.Now()
	e.logger.Info("execution finished",
		"success", report.Success,
		"succeeded", report.Counts.Succeeded,
		"failed", report.Counts.Failed,
		"skipped", report.Counts.Skipped,
	)
	return report, nil
}

func (x *execution) runSequential(ctx context.Context, order []string) {
	for _, id := range order {
		node, _ := x.graph.Node(id)
		if skip, msg := x.shouldSkip(ctx, node); skip {
			x.skip(ctx, node, msg)
			continue
		}
		x.run(ctx, node)
	}
}

// shouldSkip decides whether node must not run. Every dependency is terminal here.
func (x *execution) shouldSkip(ctx context.Context, node *domain.Node) (bool, string) {
	for _, dep := range node.DependsOn {
		rec, _ := x.store.Load(dep)
		switch rec.state {
		case domain.NodeSkipped:
			return true, fmt.Sprintf("dependency %q was skipped", dep)
		case domain.NodeFailed:
			depNode, _ := x.graph.Node(dep)
			if !depNode.Request.Meta().AllowFailure {
				return true, fmt.Sprintf("dependency %q failed", dep)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return true, fmt.Sprintf("cancelled: %v", err)
	}
	return false, ""
}

func (x *execution) skip(ctx context.Context, node *domain.Node, msg string) {
	x.transition(node.ID, domain.NodeSkipped, nil, msg)
	x.engine.logger.Debug("node skipped", "node", node.ID, "reason", msg)
	if h := x.engine.hooks.OnNodeSkip; h != nil {
		h(ctx, x.event(domain.EventNodeSkip, node, domain.NodeSkipped, msg, 0))
	}
}

func (x *execution) run(ctx context.Context, node *domain.Node) {
	logger := x.engine.logger.With("node", node.ID)
	x.transition(node.ID, domain.NodeRunning, nil, "")
	if h := x.engine.hooks.OnNodeEnter; h != nil {
		h(ctx, x.event(domain.EventNodeEnter, node, domain.NodeRunning, "", 0))
	}

	req := x.render(node.Request)
	res := x.engine.Dispatch(ctx, req)

	state, msg := domain.NodeSucceeded, ""
	if !res.Success {
		state, msg = domain.NodeFailed, failureMessage(res)
		logger.Warn("node failed", "err", msg, "allow_failure", node.Request.Meta().AllowFailure)
	} else {
		logger.Debug("node succeeded", "duration", res.Duration)
	}
	x.transition(node.ID, state, &res, msg)

	if h := x.engine.hooks.OnNodeLeave; h != nil {
		h(ctx, x.event(domain.EventNodeLeave, node, state, msg, res.Duration))
	}
}

// transition writes the node's new record. Each node is written by a single goroutine.
func (x *execution) transition(id string, to domain.NodeState, res *domain.OperationResult, msg string) {
	x.store.Compute(id, func(old record, loaded bool) (record, bool) {
		if err := domain.Transition(id, old.state, to); err != nil {
			x.engine.logger.Error("state machine violation", "err", err)
		}
		return record{state: to, result: res, message: msg}, false
	})
}

func (x *execution) event(t domain.EventType, node *domain.Node, state domain.NodeState, msg string, d time.Duration) *domain.NodeEvent {
	return &domain.NodeEvent{
		EventBase:   domain.EventBase{Timestamp: time.Now(), Type: t, RunID: x.engine.runID},
		NodeID:      node.ID,
		RequestKind: node.Request.Kind(),
		State:       state,
		Message:     msg,
		Duration:    d,
	}
}

func (x *execution) report(order []string) *domain.Report {
	r := &domain.Report{RunID: x.engine.runID, Nodes: make([]domain.NodeReport, 0, len(order))}
	for _, id := range order {
		node, _ := x.graph.Node(id)
		rec, _ := x.store.Load(id)
		r.Nodes = append(r.Nodes, domain.NodeReport{
			ID:          id,
			State:       rec.state,
			Message:     rec.message,
			RequestKind: node.Request.Kind(),
			RequestName: node.Request.Meta().Name,
			Result:      rec.result,
		})
	}
	r.Tally(func(id string) bool {
		n, ok := x.graph.Node(id)
		return ok && n.Request.Meta().AllowFailure
	})
	return r
}

func failureMessage(res domain.OperationResult) string {
	switch {
	case res.ErrorMessage != "":
		return res.ErrorMessage
	case res.Stderr != "":
		return res.Stderr
	default:
		return fmt.Sprintf("exit code %d", res.ExitCode)
	}
}

func requiredKinds(g *domain.Graph) []domain.RequestKind {
	seen := make(map[domain.RequestKind]bool)
	var kinds []domain.RequestKind
	var walk func(domain.Request)
	walk = func(r domain.Request) {
		if c, ok := r.(*domain.CompositeRequest); ok {
			for _, sub := range c.Requests {
				walk(sub)
			}
			return
		}
		if !seen[r.Kind()] {
			seen[r.Kind()] = true
			kinds = append(kinds, r.Kind())
		}
	}
	for _, n := range g.Nodes() {
		walk(n.Request)
	}
	return kinds
}
