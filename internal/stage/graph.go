// Package stage orders the named phases of the request lifecycle.
package stage

import (
	"fmt"
	"slices"
	"strings"
)

// Constraint places a node relative to groups of other nodes.
// An empty Group defaults to the node name.
type Constraint struct {
	Group  string
	Before []string
	After  []string
}

type node struct {
	name   string
	seq    int
	group  string
	before []string
	after  []string
}

// Graph accumulates nodes and sorts them into a total order.
type Graph struct {
	nodes []node
	index map[string]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Add inserts a node. Names must be unique.
func (g *Graph) Add(name string, c Constraint) error {
	if name == "" {
		return fmt.Errorf("stage name cannot be empty")
	}
	if _, exists := g.index[name]; exists {
		return fmt.Errorf("duplicate stage %q", name)
	}

	group := c.Group
	if group == "" {
		group = name
	}
	if slices.Contains(c.Before, group) || slices.Contains(c.After, group) {
		return &CycleError{Nodes: []string{name}}
	}

	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, node{
		name:   name,
		seq:    len(g.nodes),
		group:  group,
		before: nonEmpty(c.Before),
		after:  nonEmpty(c.After),
	})
	return nil
}

// Nodes returns every node name in an order honoring all constraints.
// Nodes without a relative constraint keep their insertion order.
func (g *Graph) Nodes() ([]string, error) {
	n := len(g.nodes)
	groups := make(map[string][]int)
	for i, nd := range g.nodes {
		groups[nd.group] = append(groups[nd.group], i)
	}

	// edges[i] lists the nodes that must come after i.
	edges := make([][]int, n)
	indegree := make([]int, n)
	link := func(from, to int) {
		if from == to || slices.Contains(edges[from], to) {
			return
		}
		edges[from] = append(edges[from], to)
		indegree[to]++
	}
	for i, nd := range g.nodes {
		for _, grp := range nd.before {
			for _, j := range groups[grp] {
				link(i, j)
			}
		}
		for _, grp := range nd.after {
			for _, j := range groups[grp] {
				link(j, i)
			}
		}
	}

	placed := make([]bool, n)
	order := make([]string, 0, n)
	for len(order) < n {
		next := -1
		// Lowest sequence among ready nodes keeps the sort stable.
		for i := 0; i < n; i++ {
			if !placed[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, nd := range g.nodes {
				if !placed[i] {
					stuck = append(stuck, nd.name)
				}
			}
			return nil, &CycleError{Nodes: stuck}
		}
		placed[next] = true
		order = append(order, g.nodes[next].name)
		for _, j := range edges[next] {
			indegree[j]--
		}
	}
	return order, nil
}

// Order chains names so each sits immediately after the previous one and
// immediately before the next, and returns the resolved order. The result
// equals the declaration order; duplicates are rejected.
func Order(names ...string) ([]string, error) {
	g := NewGraph()
	for i, name := range names {
		c := Constraint{Group: name}
		if i > 0 {
			c.After = []string{names[i-1]}
		}
		if i < len(names)-1 {
			c.Before = []string{names[i+1]}
		}
		if err := g.Add(name, c); err != nil {
			return nil, err
		}
	}
	return g.Nodes()
}

// CycleError reports constraints that cannot be satisfied.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("stage constraints contain a cycle among: %s", strings.Join(e.Nodes, ", "))
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
