package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/stepgraph/internal/presentation/graph"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *domain.Graph {
	t.Helper()
	g := domain.NewGraph()
	require.NoError(t, g.AddNode("step_0", &domain.FileRequest{Op: domain.FileMkdir, Path: "./p"}, 0))
	require.NoError(t, g.AddNode("build", &domain.ShellRequest{
		RequestMeta: domain.RequestMeta{AllowFailure: true},
		Cmd:         []string{"make"},
		Timeout:     30 * time.Second,
	}, 1))
	require.NoError(t, g.AddNode("step-2", &domain.InterpreterRequest{Script: "main.py"}, 2))
	require.NoError(t, g.AddNode("judge", &domain.ContainerRequest{Op: domain.ContainerExec, Container: "j", Cmd: []string{"ls"}}, 3))
	require.NoError(t, g.AddNode("pair", domain.NewComposite("pair", &domain.ShellRequest{}, &domain.ShellRequest{}), 4))
	require.NoError(t, g.AddDependency("build", "step_0"))
	require.NoError(t, g.AddDependency("step-2", "build"))
	require.NoError(t, g.AddDependency("judge", "step_0"))
	return g
}

func TestGenerateMermaid(t *testing.T) {
	got := graph.GenerateMermaid(sample(t), nil)

	tests := []struct {
		name string
		want string
	}{
		{"Header", "graph TD\n"},
		{"File Shape", `step_0["step_0 <br/> mkdir ./p"]`},
		{"Shell Shape With Timeout", `build[["build <br/> shell: make <br/> ⏱️ 30s"]]`},
		{"Interpreter Shape And Sanitized ID", `step_2[/"step-2 <br/> python main.py"/]`},
		{"Container Shape", `judge[("judge <br/> docker exec j: ls")]`},
		{"Composite Shape", `pair{{"pair <br/> composite of 2"}}`},
		{"Plain Edge", "step_0 --> build"},
		{"Edge Out Of Allow Failure", "build -.-> step_2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, got, tt.want)
		})
	}
	assert.NotContains(t, got, "classDef", "no overlay means no styles")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	report := &domain.Report{Nodes: []domain.NodeReport{
		{ID: "step_0", State: domain.NodeSucceeded},
		{ID: "build", State: domain.NodeFailed},
		{ID: "step-2", State: domain.NodeSucceeded},
		{ID: "judge", State: domain.NodeSkipped},
		{ID: "pair", State: domain.NodePending},
	}}

	got := graph.GenerateMermaid(sample(t), graph.OverlayFromReport(report))

	assert.Contains(t, got, "class step_0 succeeded;")
	assert.Contains(t, got, "class build failed;")
	assert.Contains(t, got, "class step_2 succeeded;")
	assert.Contains(t, got, "class judge skipped;")
	assert.NotContains(t, got, "class pair", "pending nodes are left unstyled")
	assert.Equal(t, 1, strings.Count(got, "classDef failed"))
}

func TestGenerateMermaid_EscapesLabels(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddNode("q", &domain.ShellRequest{Cmd: []string{"echo", `"hi"`, ">", "out"}}, 0))

	got := graph.GenerateMermaid(g, nil)
	assert.Contains(t, got, `q[["q <br/> shell: echo 'hi' &gt; out"]]`)
}

func TestGenerateMermaid_NilGraph(t *testing.T) {
	assert.Equal(t, "graph TD\n", graph.GenerateMermaid(nil, nil))
	assert.Nil(t, graph.OverlayFromReport(nil))
}
