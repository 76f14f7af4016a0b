package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/stepgraph/internal/runtime"
	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/builder"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	fs    *memory.FS
	shell *memory.Shell
	py    *memory.Interpreter
	box   *memory.Containers
}

func newFixture() *fixture {
	return &fixture{
		fs:    memory.NewFS(),
		shell: memory.NewShell(),
		py:    memory.NewInterpreter("ok\n"),
		box:   memory.NewContainers("python:3.12"),
	}
}

func (f *fixture) drivers() ports.DriverSet {
	return ports.DriverSet{File: f.fs, Shell: f.shell, Container: f.box, Interpreter: f.py}
}

func buildGraph(t *testing.T, steps ...domain.Step) *domain.Graph {
	t.Helper()
	res := builder.New(nil).Build(steps, domain.WorkflowContext{})
	require.Empty(t, res.Errors)
	return res.Graph
}

func states(r *domain.Report) []domain.NodeState {
	out := make([]domain.NodeState, len(r.Nodes))
	for i, n := range r.Nodes {
		out[i] = n.State
	}
	return out
}

func TestEngine_FailureSkipsDependents(t *testing.T) {
	f := newFixture()
	g := buildGraph(t,
		domain.Step{Type: domain.StepShell, Cmd: []string{"false"}},
		domain.Step{Type: domain.StepShell, Cmd: []string{"echo", "ok"}},
	)

	report, err := runtime.NewEngine(f.drivers()).Execute(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, []domain.NodeState{domain.NodeFailed, domain.NodeSkipped}, states(report))
	assert.False(t, report.Success)
	assert.Equal(t, domain.Counts{Failed: 1, Skipped: 1}, report.Counts)
	assert.Contains(t, report.Nodes[1].Message, "step_0")
	assert.Len(t, f.shell.Calls(), 1, "the skipped node must not be dispatched")
}

func TestEngine_AllowFailureLetsDependentsRun(t *testing.T) {
	f := newFixture()
	g := buildGraph(t,
		domain.Step{Type: domain.StepShell, Cmd: []string{"false"}, AllowFailure: true},
		domain.Step{Type: domain.StepShell, Cmd: []string{"echo", "ok"}},
	)

	report, err := runtime.NewEngine(f.drivers()).Execute(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, []domain.NodeState{domain.NodeFailed, domain.NodeSucceeded}, states(report))
	assert.True(t, report.Success, "an allowed failure does not fail the run")
}

func TestEngine_SkipIsTransitive(t *testing.T) {
	f := newFixture()
	g := buildGraph(t,
		domain.Step{Type: domain.StepShell, Cmd: []string{"false"}, Name: "a"},
		domain.Step{Type: domain.StepShell, Cmd: []string{"true"}, Name: "b"},
		domain.Step{Type: domain.StepShell, Cmd: []string{"true"}, Name: "c"},
		domain.Step{Type: domain.StepShell, Cmd: []string{"true"}, Name: "d", DependsOn: []string{}},
	)

	report, err := runtime.NewEngine(f.drivers()).Execute(context.Background(), g)
	require.NoError(t, err)

	c, _ := report.Node("c")
	assert.Equal(t, domain.NodeSkipped, c.State)
	assert.Contains(t, c.Message, `"b" was skipped`)
	d, _ := report.Node("d")
	assert.Equal(t, domain.NodeSucceeded, d.State, "independent roots still run")
}

func TestEngine_ResultSubstitution(t *testing.T) {
	f := newFixture()
	f.shell.Respond("pytest", "10/10\n")
	g := buildGraph(t,
		domain.Step{Type: domain.StepTest, Cmd: []string{"pytest"}, Name: "test"},
		domain.Step{Type: domain.StepShell, Cmd: []string{"echo", "{{step_test.result.stdout}}"}},
	)

	report, err := runtime.NewEngine(f.drivers()).Execute(context.Background(), g)
	require.NoError(t, err)
	require.True(t, report.Success)

	calls := f.shell.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"echo", "10/10"}, calls[1])
	assert.Equal(t, "10/10\n", report.Nodes[1].Result.Stdout)

	node, _ := g.Node("step_1")
	assert.Equal(t, []string{"echo", "{{step_test.result.stdout}}"}, node.Request.(*domain.ShellRequest).Cmd,
		"the graph's request stays untouched")
}

func TestEngine_UnresolvedPlaceholderStaysVerbatim(t *testing.T) {
	f := newFixture()
	g := buildGraph(t,
		domain.Step{Type: domain.StepShell, Cmd: []string{"echo", "{{step_ghost.result.stdout}}"}},
		domain.Step{Type: domain.StepShell, Cmd: []string{"echo", "{{step_0.result.nope}}"}},
	)

	_, err := runtime.NewEngine(f.drivers()).Execute(context.Background(), g)
	require.NoError(t, err)

	calls := f.shell.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "{{step_ghost.result.stdout}}", calls[0][1])
	assert.Equal(t, "{{step_0.result.nope}}", calls[1][1])
}

func TestEngine_MissingDriver(t *testing.T) {
	g := buildGraph(t, domain.Step{Type: domain.StepPython, Cmd: []string{"print(1)"}})

	_, err := runtime.NewEngine(ports.DriverSet{}).Execute(context.Background(), g)
	assert.ErrorIs(t, err, domain.ErrDriverUnavailable)
}

func TestEngine_DispatchByKind(t *testing.T) {
	f := newFixture()
	g := buildGraph(t,
		domain.Step{Type: domain.StepMkdir, Cmd: []string{"./p"}},
		domain.Step{Type: domain.StepTouch, Cmd: []string{"./p/main.py"}},
		domain.Step{Type: domain.StepPython, Cmd: []string{"./p/main.py", "--fast"}},
		domain.Step{Type: domain.StepPython, Cmd: []string{"import sys", "print(sys.argv)"}},
		domain.Step{Type: domain.StepDocker, Cmd: []string{"run", "python:3.12", "judge"}},
		domain.Step{Type: domain.StepDocker, Cmd: []string{"exec", "judge", "ls"}},
	)

	report, err := runtime.NewEngine(f.drivers()).Execute(context.Background(), g)
	require.NoError(t, err)
	assert.True(t, report.Success, "%+v", report.Nodes)
	assert.Equal(t, 6, report.Counts.Succeeded)

	assert.Equal(t, []string{"p", "p/main.py"}, f.fs.Paths())
	assert.Equal(t, []string{"./p/main.py --fast"}, f.py.Scripts())
	assert.Equal(t, []string{"import sys\nprint(sys.argv)"}, f.py.Code())
	assert.Equal(t, []string{"run judge", "exec judge"}, f.box.Calls())
}

func TestEngine_Cancelled(t *testing.T) {
	f := newFixture()
	g := buildGraph(t,
		domain.Step{Type: domain.StepShell, Cmd: []string{"true"}},
		domain.Step{Type: domain.StepShell, Cmd: []string{"true"}},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := runtime.NewEngine(f.drivers()).Execute(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, []domain.NodeState{domain.NodeSkipped, domain.NodeSkipped}, states(report))
	assert.Contains(t, report.Nodes[0].Message, "cancelled")
	assert.Empty(t, f.shell.Calls())
}

func TestEngine_DriverPanicBecomesFailure(t *testing.T) {
	f := newFixture()
	f.shell.Handle("boom", func(context.Context, []string) domain.OperationResult {
		panic("driver exploded")
	})
	g := buildGraph(t, domain.Step{Type: domain.StepShell, Cmd: []string{"boom"}})

	report, err := runtime.NewEngine(f.drivers()).Execute(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeFailed, report.Nodes[0].State)
	assert.Contains(t, report.Nodes[0].Message, "driver exploded")
}
