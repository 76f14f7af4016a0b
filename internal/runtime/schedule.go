package runtime

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// runConcurrent executes mutually independent nodes in parallel, at most
// e.concurrency at a time. A node starts only after every dependency has a
// terminal record; completions are reported over done, which is what
// orders reads of the result store after the writes.
func (x *execution) runConcurrent(ctx context.Context, order []string) {
	position := make(map[string]int, len(order))
	remaining := make(map[string]int, len(order))
	var ready []string
	for i, id := range order {
		position[id] = i
		node, _ := x.graph.Node(id)
		remaining[id] = len(node.DependsOn)
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}

	var eg errgroup.Group
	eg.SetLimit(x.engine.concurrency)
	done := make(chan string, len(order))
	finished := 0

	release := func(id string) {
		finished++
		for _, dep := range x.graph.Dependents(id) {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
	}

	for finished < len(order) {
		for len(ready) > 0 {
			id := ready[0]
			ready = ready[1:]
			node, _ := x.graph.Node(id)
			if skip, msg := x.shouldSkip(ctx, node); skip {
				x.skip(ctx, node, msg)
				release(id)
				continue
			}
			eg.Go(func() error {
				x.run(ctx, node)
				done <- id
				return nil
			})
		}
		if finished == len(order) {
			break
		}
		release(<-done)
	}
	_ = eg.Wait()
}
