package domain

import (
	"container/heap"
	"fmt"
	"slices"
)

// Node binds a Request to a position in the Execution Graph.
type Node struct {
	ID        string   `json:"id"`
	Request   Request  `json:"-"`
	DependsOn []string `json:"depends_on,omitempty"`
	// Order is the index of the originating step; it breaks ties in traversal.
	Order int `json:"order"`
}

// Graph is the Execution Graph: nodes keyed by id plus dependency edges.
// It is assembled by the builder and only read afterwards.
type Graph struct {
	nodes      map[string]*Node
	order      []string
	dependents map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		dependents: make(map[string][]string),
	}
}

// AddNode inserts a node without edges. Dependencies are added with AddDependency.
func (g *Graph) AddNode(id string, req Request, order int) error {
	if _, exists := g.nodes[id]; exists {
		return &GraphError{Kind: GraphDuplicateNode, NodeID: id, Err: ErrDuplicateNode}
	}
	g.nodes[id] = &Node{ID: id, Request: req, Order: order}
	g.order = append(g.order, id)
	return nil
}

// AddDependency records that id runs after dep.
// It refuses unknown nodes, self edges and edges that would close a cycle.
func (g *Graph) AddDependency(id, dep string) error {
	node, ok := g.nodes[id]
	if !ok {
		return &GraphError{Kind: GraphUnknownDependency, NodeID: id, Err: ErrUnknownDependency}
	}
	if _, ok := g.nodes[dep]; !ok {
		return &GraphError{Kind: GraphUnknownDependency, NodeID: id, Target: dep, Err: ErrUnknownDependency}
	}
	if id == dep {
		return &GraphError{Kind: GraphSelfDependency, NodeID: id, Target: dep, Err: ErrSelfDependency}
	}
	if slices.Contains(node.DependsOn, dep) {
		return nil
	}
	if g.reaches(id, dep) {
		return &GraphError{Kind: GraphCycle, NodeID: id, Target: dep, Err: ErrCycle}
	}
	node.DependsOn = append(node.DependsOn, dep)
	g.dependents[dep] = append(g.dependents[dep], id)
	return nil
}

// reaches reports whether to is reachable from from along dependent edges.
func (g *Graph) reaches(from, to string) bool {
	visited := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		stack = append(stack, g.dependents[cur]...)
	}
	return false
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		n := *g.nodes[id]
		n.DependsOn = slices.Clone(n.DependsOn)
		out = append(out, n)
	}
	return out
}

// IDs returns node ids in insertion order.
func (g *Graph) IDs() []string { return slices.Clone(g.order) }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, node := range g.nodes {
		n += len(node.DependsOn)
	}
	return n
}

// Dependents returns the ids that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.dependents[id])
}

// Ancestors returns every node id reachable through depends_on from id.
func (g *Graph) Ancestors(id string) map[string]bool {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		n, ok := g.nodes[cur]
		if !ok {
			return
		}
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(id)
	return seen
}

// TopologicalOrder returns node ids so that every node follows its dependencies.
// Among nodes that are ready at the same time the lower Order comes first.
func (g *Graph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	ready := &orderQueue{graph: g}
	for _, id := range g.order {
		indegree[id] = len(g.nodes[id].DependsOn)
		if indegree[id] == 0 {
			heap.Push(ready, id)
		}
	}

	out := make([]string, 0, len(g.order))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		out = append(out, id)
		for _, dep := range g.dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(out) != len(g.order) {
		return nil, fmt.Errorf("%w: %d of %d nodes unreachable", ErrCycle, len(g.order)-len(out), len(g.order))
	}
	return out, nil
}

// orderQueue is a min-heap of node ids keyed by Node.Order.
type orderQueue struct {
	graph *Graph
	ids   []string
}

func (q *orderQueue) Len() int { return len(q.ids) }
func (q *orderQueue) Less(i, j int) bool {
	a, b := q.graph.nodes[q.ids[i]], q.graph.nodes[q.ids[j]]
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.ID < b.ID
}
func (q *orderQueue) Swap(i, j int) { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }
func (q *orderQueue) Push(x any)    { q.ids = append(q.ids, x.(string)) }
func (q *orderQueue) Pop() any {
	old := q.ids
	n := len(old)
	x := old[n-1]
	q.ids = old[:n-1]
	return x
}
