package stepgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/stepgraph/internal/runtime"
	"github.com/aretw0/stepgraph/pkg/builder"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/fitting"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed run can keep a workspace locked.
const DefaultLockTTL = 30 * time.Minute

// Engine is the high-level entry point for the stepgraph library.
// It ties the builder, the fitting engine and the execution engine together
// over one driver set and one workspace.
type Engine struct {
	drivers     ports.DriverSet
	inspector   ports.Inspector
	factory     builder.Factory
	store       ports.ReportStore
	locker      ports.Locker
	lockTTL     time.Duration
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	concurrency int
	workspace   string
	images      map[string]string
	Name        string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithDrivers sets the drivers requests are dispatched to.
func WithDrivers(d ports.DriverSet) Option {
	return func(e *Engine) {
		e.drivers = d
	}
}

// WithInspector sets the read-only environment inspector used by fitting.
func WithInspector(i ports.Inspector) Option {
	return func(e *Engine) {
		e.inspector = i
	}
}

// WithFactory replaces the default request factory.
func WithFactory(f builder.Factory) Option {
	return func(e *Engine) {
		e.factory = f
	}
}

// WithReportStore persists every report produced by Run.
func WithReportStore(s ports.ReportStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker serializes runs on the same workspace.
func WithLocker(l ports.Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(d time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = d
	}
}

// WithLifecycleHooks registers observability hooks.
// Calling it more than once merges the hooks in order.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConcurrency lets up to n independent nodes run at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithWorkspace sets the directory relative paths are resolved against. Default ".".
func WithWorkspace(dir string) Option {
	return func(e *Engine) {
		e.workspace = dir
	}
}

// WithContainerImages tells fitting which image recreates a missing container.
func WithContainerImages(images map[string]string) Option {
	return func(e *Engine) {
		for name, image := range images {
			e.images[name] = image
		}
	}
}

// New initializes a new Engine.
func New(opts ...Option) *Engine {
	eng := &Engine{
		lockTTL:     DefaultLockTTL,
		concurrency: 1,
		workspace:   ".",
		images:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if abs, err := filepath.Abs(eng.workspace); err == nil {
		eng.Name = filepath.Base(abs)
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("workspace", eng.Name)
	}
	return eng
}

// Workspace returns the directory the engine operates in.
func (e *Engine) Workspace() string {
	return e.workspace
}

// Store returns the configured report store, or nil.
func (e *Engine) Store() ports.ReportStore {
	return e.store
}

// Build converts steps into an Execution Graph. It never touches the environment.
func (e *Engine) Build(steps []domain.Step, wctx domain.WorkflowContext) *builder.Result {
	return builder.New(e.factory, builder.WithLogger(e.logger)).Build(steps, wctx)
}

// Validate builds the workflow and returns the result for its errors and warnings.
func (e *Engine) Validate(wf *domain.Workflow) *builder.Result {
	return e.Build(wf.Steps, e.context(wf))
}

// Inspect reports what the environment lacks for g without changing anything.
func (e *Engine) Inspect(ctx context.Context, g *domain.Graph) (*domain.PreparationPlan, error) {
	return e.fitter("").Verify(ctx, g, e.workspace)
}

// Plan is a dry-run Fit: it returns the preparation requests without executing them.
func (e *Engine) Plan(ctx context.Context, g *domain.Graph) (*domain.FittingSummary, error) {
	return e.fitter("").Plan(ctx, g, e.workspace)
}

// Fit prepares the environment so that g can run.
func (e *Engine) Fit(ctx context.Context, g *domain.Graph) (*domain.FittingSummary, error) {
	return e.fitter("").Fit(ctx, g, e.workspace)
}

// Execute runs g and returns the per-node report. The report is not persisted.
func (e *Engine) Execute(ctx context.Context, g *domain.Graph) (*domain.Report, error) {
	return e.runtime("").Execute(ctx, g)
}

// RunOptions tune a single Run.
type RunOptions struct {
	// Fit prepares the environment before executing.
	Fit bool
	// RunID names the run; a UUID is generated when empty.
	RunID string
}

// Run builds, optionally fits, executes and persists one workflow.
// Build errors do not stop the run: the steps that converted still execute,
// but the run is reported as failed.
func (e *Engine) Run(ctx context.Context, wf *domain.Workflow, opts RunOptions) (*domain.Report, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := e.logger.With("run_id", runID)

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, e.lockKey(), e.lockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release workspace lock", "err", err)
			}
		}()
	}

	built := e.Validate(wf)
	for _, err := range built.Errors {
		logger.Warn("step rejected", "err", err)
	}

	var summary *domain.FittingSummary
	if opts.Fit {
		var err error
		summary, err = e.fitter(runID).Fit(ctx, built.Graph, e.workspace)
		if err != nil {
			return nil, fmt.Errorf("fitting failed: %w", err)
		}
		if failed := summary.FailedPreparations(); len(failed) > 0 {
			logger.Warn("preparation incomplete", "failed", len(failed))
		}
	}

	report, err := e.runtime(runID).Execute(ctx, built.Graph)
	if err != nil {
		return nil, err
	}
	report.RunID = runID
	report.Workspace = e.workspace
	report.BuildErrors = built.Messages()
	report.Warnings = built.Warnings
	report.Fitting = summary
	if len(report.BuildErrors) > 0 {
		report.Success = false
	}

	if e.store != nil {
		if err := e.store.Save(ctx, report); err != nil {
			return report, fmt.Errorf("failed to save report: %w", err)
		}
	}
	return report, nil
}

// RunSequential executes the workflow as one Composite request:
// steps run in list order and the first failure that is not allowed stops the rest.
// Explicit dependencies are ignored in this mode, and {{step_...}} placeholders
// are passed to the drivers unresolved; use Run when steps consume earlier results.
func (e *Engine) RunSequential(ctx context.Context, wf *domain.Workflow) (domain.OperationResult, error) {
	req, errs := builder.New(e.factory, builder.WithLogger(e.logger)).BuildComposite(wf.Steps, e.context(wf))
	if len(errs) > 0 {
		return domain.OperationResult{}, fmt.Errorf("invalid workflow: %w", errors.Join(errs...))
	}
	if req == nil {
		return domain.Succeeded(nil), nil
	}
	return e.runtime("").Dispatch(ctx, req), nil
}

// Report loads a stored report.
func (e *Engine) Report(ctx context.Context, runID string) (*domain.Report, error) {
	if e.store == nil {
		return nil, domain.ErrRunNotFound
	}
	return e.store.Load(ctx, runID)
}

// Runs lists stored run ids.
func (e *Engine) Runs(ctx context.Context) ([]string, error) {
	if e.store == nil {
		return []string{}, nil
	}
	return e.store.List(ctx)
}

func (e *Engine) context(wf *domain.Workflow) domain.WorkflowContext {
	wctx := wf.Context
	if wctx.WorkspacePath == "" {
		wctx.WorkspacePath = e.workspace
	}
	return wctx
}

func (e *Engine) lockKey() string {
	key := e.workspace
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	return "lock:" + key
}

func (e *Engine) runtime(runID string) *runtime.Engine {
	return runtime.NewEngine(e.drivers,
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithConcurrency(e.concurrency),
		runtime.WithRunID(runID),
	)
}

func (e *Engine) fitter(runID string) *fitting.Engine {
	opts := []fitting.Option{
		fitting.WithLogger(e.logger),
		fitting.WithLifecycleHooks(e.hooks),
		fitting.WithRunID(runID),
	}
	for name, image := range e.images {
		opts = append(opts, fitting.WithContainerImage(name, image))
	}
	return fitting.New(e.inspector, e.runtime(runID), opts...)
}
