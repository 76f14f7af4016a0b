package fitting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Engine reconciles the environment a graph implicitly requires with the
// environment the Inspector observes, and closes the gaps it can.
type Engine struct {
	inspector  ports.Inspector
	dispatcher ports.Dispatcher
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	images     map[string]string
	runID      string
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers the OnPreparation hook.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithContainerImage tells the engine which image recreates a container
// that no docker run step in the graph mentions.
func WithContainerImage(container, image string) Option {
	return func(e *Engine) {
		e.images[container] = image
	}
}

// WithRunID tags preparation events.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// New creates a fitting engine. The dispatcher is only needed to execute preparation.
func New(inspector ports.Inspector, dispatcher ports.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		inspector:  inspector,
		dispatcher: dispatcher,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		images:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify walks every node's request, derives the facts it needs and asks the
// Inspector about each. It never changes the environment.
func (e *Engine) Verify(ctx context.Context, g *domain.Graph, basePath string) (*domain.PreparationPlan, error) {
	if e.inspector == nil {
		return nil, fmt.Errorf("%w: inspector", domain.ErrDriverUnavailable)
	}
	facts := collectFacts(g, e.images)
	plan := &domain.PreparationPlan{}

	e.verifyDirectories(ctx, facts.dirs, basePath, plan)
	e.verifyContainers(ctx, facts.containers, plan)
	e.verifyImages(ctx, facts.images, plan)

	e.logger.Debug("requirements verified",
		"directories", len(facts.dirs),
		"containers", len(facts.containers),
		"images", len(facts.images),
		"missing", len(plan.Missing),
	)
	return plan, nil
}

func (e *Engine) verifyDirectories(ctx context.Context, dirs []fact, basePath string, plan *domain.PreparationPlan) {
	// Below a missing directory everything is missing; below a file nothing can be created.
	absent := make(map[string]bool)
	blocked := make(map[string]bool)
	var missing []domain.Requirement

	for _, d := range dirs {
		k := key(d.target)
		parent := key(parentDir(d.target))
		if blocked[parent] {
			blocked[k] = true
			continue
		}
		if absent[parent] {
			absent[k] = true
			missing = append(missing, dirRequirement(d, "absent", true))
			continue
		}
		st, err := e.inspector.CheckState(ctx, resolve(basePath, d.target))
		switch {
		case err != nil:
			plan.Errors = append(plan.Errors, fmt.Sprintf("inspect %s: %v", d.target, err))
			blocked[k] = true
		case !st.Exists:
			absent[k] = true
			missing = append(missing, dirRequirement(d, "absent", true))
		case !st.IsDir:
			blocked[k] = true
			missing = append(missing, dirRequirement(d, "not a directory", false))
		}
	}
	plan.Missing = append(plan.Missing, sortByDepth(missing)...)
}

func dirRequirement(d fact, observed string, preparable bool) domain.Requirement {
	return domain.Requirement{
		Kind:       domain.FactDirectory,
		Target:     d.target,
		NodeID:     d.node,
		Observed:   observed,
		Preparable: preparable,
	}
}

func (e *Engine) verifyContainers(ctx context.Context, containers []fact, plan *domain.PreparationPlan) {
	for _, c := range containers {
		status, err := e.inspector.ContainerStatus(ctx, c.target)
		if err != nil {
			plan.Errors = append(plan.Errors, fmt.Sprintf("inspect container %s: %v", c.target, err))
			continue
		}
		if status == domain.ContainerRunning {
			continue
		}
		plan.Missing = append(plan.Missing, domain.Requirement{
			Kind:       domain.FactContainer,
			Target:     c.target,
			NodeID:     c.node,
			Image:      c.image,
			Observed:   string(status),
			Preparable: c.image != "",
		})
	}
}

func (e *Engine) verifyImages(ctx context.Context, images []fact, plan *domain.PreparationPlan) {
	for _, img := range images {
		ok, err := e.inspector.ImageExists(ctx, img.target)
		if err != nil {
			plan.Errors = append(plan.Errors, fmt.Sprintf("inspect image %s: %v", img.target, err))
			continue
		}
		if !ok {
			plan.Missing = append(plan.Missing, domain.Requirement{
				Kind:     domain.FactImage,
				Target:   img.target,
				NodeID:   img.node,
				Observed: "absent",
			})
		}
	}
}

// CreatePreparationRequests synthesizes the requests that close every
// preparable gap, in the order they must run.
func (e *Engine) CreatePreparationRequests(plan *domain.PreparationPlan) []domain.Request {
	if plan == nil {
		return nil
	}
	var reqs []domain.Request
	for _, m := range plan.Missing {
		if !m.Preparable {
			continue
		}
		switch m.Kind {
		case domain.FactDirectory:
			reqs = append(reqs, &domain.FileRequest{
				RequestMeta: domain.RequestMeta{Name: "prepare_mkdir_" + m.Target},
				Op:          domain.FileMkdir,
				Path:        m.Target,
			})
		case domain.FactContainer:
			run := &domain.ContainerRequest{
				RequestMeta: domain.RequestMeta{Name: "prepare_run_" + m.Target},
				Op:          domain.ContainerRun,
				Image:       m.Image,
				Container:   m.Target,
			}
			if m.Observed == string(domain.ContainerStopped) {
				rm := &domain.ContainerRequest{
					RequestMeta: domain.RequestMeta{Name: "prepare_rm_" + m.Target},
					Op:          domain.ContainerRemove,
					Container:   m.Target,
				}
				reqs = append(reqs, domain.NewComposite("prepare_container_"+m.Target, rm, run))
				continue
			}
			reqs = append(reqs, run)
		}
	}
	return reqs
}

// ExecutePreparation runs each request through the dispatcher. A failed
// request is reported in its result and does not stop the others.
func (e *Engine) ExecutePreparation(ctx context.Context, reqs []domain.Request) []domain.OperationResult {
	results := make([]domain.OperationResult, 0, len(reqs))
	if len(reqs) == 0 {
		return results
	}
	if e.dispatcher == nil {
		for _, r := range reqs {
			results = append(results, domain.Failed(r, "%v: dispatcher", domain.ErrDriverUnavailable))
		}
		return results
	}
	for _, r := range reqs {
		res := e.dispatcher.Dispatch(ctx, r)
		if res.Success {
			e.logger.Info("preparation succeeded", "request", r.Meta().Name)
		} else {
			e.logger.Warn("preparation failed", "request", r.Meta().Name, "err", res.ErrorMessage)
		}
		if h := e.hooks.OnPreparation; h != nil {
			h(ctx, &domain.PreparationEvent{
				EventBase:   domain.EventBase{Timestamp: time.Now(), Type: domain.EventPreparation, RunID: e.runID},
				RequestName: r.Meta().Name,
				Success:     res.Success,
			})
		}
		results = append(results, res)
	}
	return results
}

// Fit composes Verify, CreatePreparationRequests and ExecutePreparation.
func (e *Engine) Fit(ctx context.Context, g *domain.Graph, basePath string) (*domain.FittingSummary, error) {
	summary, err := e.Plan(ctx, g, basePath)
	if err != nil {
		return nil, err
	}
	summary.PreparationResults = e.ExecutePreparation(ctx, summary.PreparationRequests)
	for _, r := range summary.PreparationResults {
		if r.Success {
			summary.SuccessfulPreparations++
		}
	}
	return summary, nil
}

// Plan is Fit without executing anything.
func (e *Engine) Plan(ctx context.Context, g *domain.Graph, basePath string) (*domain.FittingSummary, error) {
	plan, err := e.Verify(ctx, g, basePath)
	if err != nil {
		return nil, err
	}
	reqs := e.CreatePreparationRequests(plan)
	return &domain.FittingSummary{
		PreparationNeeded:   len(reqs) > 0,
		Missing:             plan.Missing,
		PreparationRequests: reqs,
		PreparationResults:  []domain.OperationResult{},
		Errors:              plan.Errors,
	}, nil
}
