package domain_test

import (
	"testing"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell(name string, cmd ...string) domain.Request {
	return &domain.ShellRequest{RequestMeta: domain.RequestMeta{Name: name}, Cmd: cmd}
}

func TestGraph_AddDependency(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddNode("a", shell("a", "true"), 0))
	require.NoError(t, g.AddNode("b", shell("b", "true"), 1))
	require.NoError(t, g.AddNode("c", shell("c", "true"), 2))

	t.Run("Duplicate Node", func(t *testing.T) {
		err := g.AddNode("a", shell("a", "true"), 3)
		assert.ErrorIs(t, err, domain.ErrDuplicateNode)
	})

	t.Run("Unknown Target", func(t *testing.T) {
		err := g.AddDependency("b", "ghost")
		assert.ErrorIs(t, err, domain.ErrUnknownDependency)
	})

	t.Run("Self Edge", func(t *testing.T) {
		err := g.AddDependency("a", "a")
		assert.ErrorIs(t, err, domain.ErrSelfDependency)
	})

	t.Run("Cycle Refused", func(t *testing.T) {
		require.NoError(t, g.AddDependency("b", "a"))
		require.NoError(t, g.AddDependency("c", "b"))

		err := g.AddDependency("a", "c")
		assert.ErrorIs(t, err, domain.ErrCycle)

		var gerr *domain.GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, domain.GraphCycle, gerr.Kind)
	})

	t.Run("Duplicate Edge Ignored", func(t *testing.T) {
		require.NoError(t, g.AddDependency("b", "a"))
		assert.Equal(t, 2, g.EdgeCount())
	})

	assert.Equal(t, []string{"b"}, g.Dependents("a"))
	assert.Equal(t, map[string]bool{"a": true, "b": true}, g.Ancestors("c"))
}

func TestGraph_TopologicalOrder(t *testing.T) {
	g := domain.NewGraph()
	// Inserted out of order on purpose: Order decides ties, not insertion.
	require.NoError(t, g.AddNode("late", shell("late", "true"), 3))
	require.NoError(t, g.AddNode("root", shell("root", "true"), 0))
	require.NoError(t, g.AddNode("left", shell("left", "true"), 1))
	require.NoError(t, g.AddNode("right", shell("right", "true"), 2))

	require.NoError(t, g.AddDependency("left", "root"))
	require.NoError(t, g.AddDependency("right", "root"))
	require.NoError(t, g.AddDependency("late", "left"))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "left", "right", "late"}, order)
}

func TestGraph_NodesAreCopies(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddNode("a", shell("a", "true"), 0))
	require.NoError(t, g.AddNode("b", shell("b", "true"), 1))
	require.NoError(t, g.AddDependency("b", "a"))

	nodes := g.Nodes()
	nodes[1].DependsOn[0] = "mutated"

	n, ok := g.Node("b")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, n.DependsOn)
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to domain.NodeState
		ok       bool
	}{
		{domain.NodePending, domain.NodeRunning, true},
		{domain.NodePending, domain.NodeSkipped, true},
		{domain.NodeRunning, domain.NodeSucceeded, true},
		{domain.NodeRunning, domain.NodeFailed, true},
		{domain.NodePending, domain.NodeSucceeded, false},
		{domain.NodeSkipped, domain.NodeRunning, false},
		{domain.NodeSucceeded, domain.NodeFailed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := domain.Transition("n", tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
	assert.True(t, domain.NodeSkipped.IsTerminal())
	assert.False(t, domain.NodeRunning.IsTerminal())
}
