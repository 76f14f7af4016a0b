package fitting_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/stepgraph/internal/runtime"
	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/builder"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/fitting"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	fs     *memory.FS
	box    *memory.Containers
	engine *runtime.Engine
}

func newEnv(dirs ...string) *env {
	fs := memory.NewFS(dirs...)
	box := memory.NewContainers("python:3.12")
	return &env{
		fs:  fs,
		box: box,
		engine: runtime.NewEngine(ports.DriverSet{
			File:      fs,
			Shell:     memory.NewShell(),
			Container: box,
		}),
	}
}

func (e *env) fitter(opts ...fitting.Option) *fitting.Engine {
	return fitting.New(memory.NewInspector(e.fs, e.box), e.engine, opts...)
}

func build(t *testing.T, steps ...domain.Step) *domain.Graph {
	t.Helper()
	res := builder.New(nil).Build(steps, domain.WorkflowContext{})
	require.Empty(t, res.Errors)
	return res.Graph
}

func targets(reqs []domain.Requirement) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Target
	}
	return out
}

func TestFit_PlaceholderPathsAreNotPrepared(t *testing.T) {
	e := newEnv()
	g := build(t,
		domain.Step{Type: domain.StepShell, Name: "dir", Cmd: []string{"mktemp", "-d"}},
		domain.Step{Type: domain.StepTouch, Cmd: []string{"{{step_dir.result.stdout}}/main.py"}},
		domain.Step{Type: domain.StepShell, Cmd: []string{"ls"}, Cwd: "{{step_dir.result.stdout}}/sub"},
	)

	summary, err := e.fitter().Fit(context.Background(), g, "")
	require.NoError(t, err)
	assert.False(t, summary.PreparationNeeded)
	assert.Empty(t, summary.Missing)
	assert.Empty(t, summary.PreparationRequests)

	state, err := e.fs.CheckState(context.Background(), "{{step_dir.result.stdout}}")
	require.NoError(t, err)
	assert.False(t, state.Exists)
	assert.Empty(t, e.fs.Calls(), "nothing touched the filesystem")
}

func TestFit_MissingParentThenExecute(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	g := build(t,
		domain.Step{Type: domain.StepMkdir, Cmd: []string{"./p"}},
		domain.Step{Type: domain.StepTouch, Cmd: []string{"./p/main.py"}},
	)

	summary, err := e.fitter().Fit(ctx, g, "")
	require.NoError(t, err)

	assert.True(t, summary.PreparationNeeded)
	assert.Equal(t, []string{"./p"}, targets(summary.Missing))
	require.Len(t, summary.PreparationRequests, 1)
	mkdir, ok := summary.PreparationRequests[0].(*domain.FileRequest)
	require.True(t, ok)
	assert.Equal(t, domain.FileMkdir, mkdir.Op)
	assert.Equal(t, "./p", mkdir.Path)
	assert.Equal(t, 1, summary.SuccessfulPreparations)

	report, err := e.engine.Execute(ctx, g)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.Counts.Succeeded)
}

func TestFit_Idempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	g := build(t,
		domain.Step{Type: domain.StepTouch, Cmd: []string{"./a/b/c.txt"}},
		domain.Step{Type: domain.StepCopy, Cmd: []string{"./a/b/c.txt", "./out/c.txt"}},
	)
	fitter := e.fitter()

	first, err := fitter.Fit(ctx, g, "")
	require.NoError(t, err)
	assert.True(t, first.PreparationNeeded)

	second, err := fitter.Fit(ctx, g, "")
	require.NoError(t, err)
	assert.False(t, second.PreparationNeeded)
	assert.Empty(t, second.Missing)
	assert.Empty(t, second.PreparationRequests)
	assert.Empty(t, second.PreparationResults)
}

func TestVerify_NestedOutermostFirst(t *testing.T) {
	e := newEnv("./a")
	g := build(t,
		domain.Step{Type: domain.StepTouch, Cmd: []string{"./a/b/c/d.txt"}},
		domain.Step{Type: domain.StepMove, Cmd: []string{"./x", "./z/y"}},
	)

	plan, err := e.fitter().Verify(context.Background(), g, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"./z", "./a/b", "./a/b/c"}, targets(plan.Missing))
	assert.Empty(t, e.fs.Calls(), "verification must not touch the filesystem")

	reqs := e.fitter().CreatePreparationRequests(plan)
	require.Len(t, reqs, 3)
	assert.Equal(t, "./a/b", reqs[1].(*domain.FileRequest).Path)
}

func TestVerify_ShellCwdAndDeduplication(t *testing.T) {
	e := newEnv()
	g := build(t,
		domain.Step{Type: domain.StepShell, Cmd: []string{"make"}, Cwd: "build"},
		domain.Step{Type: domain.StepTouch, Cmd: []string{"build/x"}},
		domain.Step{Type: domain.StepTouch, Cmd: []string{"./build/y"}},
	)

	plan, err := e.fitter().Verify(context.Background(), g, "")
	require.NoError(t, err)
	require.Len(t, plan.Missing, 1)
	assert.Equal(t, "build", plan.Missing[0].Target)
	assert.Equal(t, "step_0", plan.Missing[0].NodeID)
}

func TestVerify_FileInTheWay(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	require.True(t, e.fs.Touch(ctx, "blocker").Success)
	g := build(t, domain.Step{Type: domain.StepTouch, Cmd: []string{"blocker/sub/x.txt"}})

	summary, err := e.fitter().Plan(ctx, g, "")
	require.NoError(t, err)
	require.Len(t, summary.Missing, 1)
	assert.False(t, summary.Missing[0].Preparable)
	assert.Equal(t, "not a directory", summary.Missing[0].Observed)
	assert.False(t, summary.PreparationNeeded)
}

func TestFit_Containers(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing Container Is Started", func(t *testing.T) {
		e := newEnv()
		g := build(t, domain.Step{Type: domain.StepDocker, Cmd: []string{"exec", "judge", "ls"}})

		summary, err := e.fitter(fitting.WithContainerImage("judge", "python:3.12")).Fit(ctx, g, "")
		require.NoError(t, err)
		require.Len(t, summary.Missing, 1)
		assert.Equal(t, domain.FactContainer, summary.Missing[0].Kind)
		assert.Equal(t, 1, summary.SuccessfulPreparations)

		running, _ := e.box.IsRunning(ctx, "judge")
		assert.True(t, running)
	})

	t.Run("Stopped Container Is Recreated", func(t *testing.T) {
		e := newEnv()
		e.box.Seed("judge", "python:3.12", false)
		g := build(t, domain.Step{Type: domain.StepDocker, Cmd: []string{"exec", "judge", "ls"}})

		summary, err := e.fitter(fitting.WithContainerImage("judge", "python:3.12")).Fit(ctx, g, "")
		require.NoError(t, err)
		require.Len(t, summary.PreparationRequests, 1)
		comp, ok := summary.PreparationRequests[0].(*domain.CompositeRequest)
		require.True(t, ok)
		assert.Len(t, comp.Requests, 2)
		assert.True(t, summary.PreparationResults[0].Success)
		assert.Equal(t, []string{"rm judge", "run judge"}, e.box.Calls())
	})

	t.Run("Unknown Image Is Not Preparable", func(t *testing.T) {
		e := newEnv()
		g := build(t, domain.Step{Type: domain.StepDocker, Cmd: []string{"exec", "judge", "ls"}})

		summary, err := e.fitter().Fit(ctx, g, "")
		require.NoError(t, err)
		require.Len(t, summary.Missing, 1)
		assert.False(t, summary.Missing[0].Preparable)
		assert.False(t, summary.PreparationNeeded)
	})

	t.Run("Upstream Run Satisfies Exec", func(t *testing.T) {
		e := newEnv()
		g := build(t,
			domain.Step{Type: domain.StepDocker, Cmd: []string{"run", "python:3.12", "judge"}},
			domain.Step{Type: domain.StepDocker, Cmd: []string{"exec", "judge", "ls"}},
		)

		summary, err := e.fitter().Fit(ctx, g, "")
		require.NoError(t, err)
		assert.Empty(t, summary.Missing)
	})

	t.Run("Missing Image Is Reported", func(t *testing.T) {
		e := newEnv()
		g := build(t, domain.Step{Type: domain.StepDocker, Cmd: []string{"run", "rust:1", "judge"}})

		summary, err := e.fitter().Fit(ctx, g, "")
		require.NoError(t, err)
		require.Len(t, summary.Missing, 1)
		assert.Equal(t, domain.FactImage, summary.Missing[0].Kind)
		assert.False(t, summary.PreparationNeeded)
	})
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(_ context.Context, req domain.Request) domain.OperationResult {
	return domain.Failed(req, "mkdir %s: permission denied", req.Meta().Name)
}

func TestFit_PreparationFailureIsReported(t *testing.T) {
	e := newEnv()
	var events []*domain.PreparationEvent
	hooks := domain.LifecycleHooks{OnPreparation: func(_ context.Context, ev *domain.PreparationEvent) {
		events = append(events, ev)
	}}
	fitter := fitting.New(memory.NewInspector(e.fs, e.box), failingDispatcher{}, fitting.WithLifecycleHooks(hooks))
	g := build(t, domain.Step{Type: domain.StepTouch, Cmd: []string{"./p/q/x"}})

	summary, err := fitter.Fit(context.Background(), g, "")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SuccessfulPreparations)
	require.Len(t, summary.FailedPreparations(), 2, "a failure does not stop later preparations")
	assert.Equal(t, domain.CategoryPermission, summary.PreparationResults[0].Category)
	require.Len(t, events, 2)
	assert.False(t, events[0].Success)
}

type brokenInspector struct{ *memory.Inspector }

func (brokenInspector) CheckState(context.Context, string) (domain.PathState, error) {
	return domain.PathState{}, errors.New("stat: input/output error")
}

func TestVerify_InspectionErrors(t *testing.T) {
	g := build(t, domain.Step{Type: domain.StepTouch, Cmd: []string{"./p/x"}})

	plan, err := fitting.New(&brokenInspector{}, nil).Verify(context.Background(), g, "")
	require.NoError(t, err)
	assert.Empty(t, plan.Missing)
	require.Len(t, plan.Errors, 1)
	assert.Contains(t, plan.Errors[0], "input/output error")

	_, err = fitting.New(nil, nil).Verify(context.Background(), g, "")
	assert.ErrorIs(t, err, domain.ErrDriverUnavailable)
}
