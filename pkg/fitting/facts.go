package fitting

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// fact is one environment prerequisite, attributed to the first node needing it.
type fact struct {
	target string
	node   string
	image  string
}

type factSet struct {
	dirs       []fact
	containers []fact
	images     []fact
}

type collector struct {
	graph   *domain.Graph
	images  map[string]string
	set     factSet
	seen    mapset.Set[string]
	runners map[string][]string // container -> nodes that run it
}

// collectFacts derives every fact the graph needs, nodes in execution order.
// Directory facts are expanded to all their ancestors, outermost first.
func collectFacts(g *domain.Graph, images map[string]string) factSet {
	c := &collector{
		graph:   g,
		images:  make(map[string]string, len(images)),
		seen:    mapset.NewThreadUnsafeSet[string](),
		runners: make(map[string][]string),
	}
	for k, v := range images {
		c.images[k] = v
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		order = g.IDs()
	}
	// Images from docker run steps anywhere in the graph can recreate a container.
	for _, id := range order {
		node, _ := g.Node(id)
		for _, leaf := range leaves(node.Request) {
			if r, ok := leaf.(*domain.ContainerRequest); ok && r.Op == domain.ContainerRun {
				if _, known := c.images[r.Container]; !known && r.Image != "" {
					c.images[r.Container] = r.Image
				}
				c.runners[r.Container] = append(c.runners[r.Container], id)
			}
		}
	}

	for _, id := range order {
		node, _ := g.Node(id)
		started := make(map[string]bool)
		for _, leaf := range leaves(node.Request) {
			c.visit(id, leaf, started)
		}
	}
	return c.set
}

func (c *collector) visit(id string, req domain.Request, started map[string]bool) {
	switch r := req.(type) {
	case *domain.FileRequest:
		switch r.Op {
		case domain.FileTouch, domain.FileWrite:
			c.dir(id, parentDir(r.Path))
		case domain.FileCopy, domain.FileMove, domain.FileCopyTree, domain.FileMoveTree:
			c.dir(id, parentDir(r.Dst))
		}
	case *domain.ShellRequest:
		c.dir(id, r.Cwd)
	case *domain.InterpreterRequest:
		c.dir(id, r.Cwd)
	case *domain.ContainerRequest:
		switch r.Op {
		case domain.ContainerRun:
			started[r.Container] = true
			c.add(&c.set.images, "image:", r.Image, id, "")
		case domain.ContainerExec:
			c.container(id, r.Container, started)
		case domain.ContainerCopy:
			for _, side := range []string{r.Src, r.Dst} {
				if name, ok := containerSide(side); ok {
					c.container(id, name, started)
				}
			}
		}
	}
}

// dir records dir and its ancestors. Paths built from placeholders are only
// known once upstream steps ran, so they yield no facts.
func (c *collector) dir(id, dir string) {
	if len(domain.PlaceholderRefs(dir)) > 0 {
		return
	}
	for _, d := range ancestors(dir) {
		c.add(&c.set.dirs, "dir:", d, id, "")
	}
}

// container records that name must be running, unless the node itself or
// one of its ancestors starts it.
func (c *collector) container(id, name string, started map[string]bool) {
	if name == "" || started[name] {
		return
	}
	up := c.graph.Ancestors(id)
	for _, runner := range c.runners[name] {
		if up[runner] {
			return
		}
	}
	c.add(&c.set.containers, "container:", name, id, c.images[name])
}

func (c *collector) add(list *[]fact, prefix, target, node, image string) {
	if target == "" {
		return
	}
	k := target
	if prefix == "dir:" {
		k = key(target)
	}
	if !c.seen.Add(prefix + k) {
		return
	}
	*list = append(*list, fact{target: target, node: node, image: image})
}

func leaves(req domain.Request) []domain.Request {
	if comp, ok := req.(*domain.CompositeRequest); ok {
		var out []domain.Request
		for _, sub := range comp.Requests {
			out = append(out, leaves(sub)...)
		}
		return out
	}
	if req == nil {
		return nil
	}
	return []domain.Request{req}
}

// sortByDepth orders directory requirements outermost first, keeping
// first-appearance order among equals.
func sortByDepth(reqs []domain.Requirement) []domain.Requirement {
	sort.SliceStable(reqs, func(i, j int) bool {
		return depth(reqs[i].Target) < depth(reqs[j].Target)
	})
	return reqs
}
