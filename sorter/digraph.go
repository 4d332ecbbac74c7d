package sorter

import (
	"slices"

	"github.com/syssam/cayenne/mapping"
)

// digraph is the referential graph of entities. An arc runs from the
// entity holding a primary key to every entity referencing it, so arcs
// point in insert order.
type digraph struct {
	nodes     []node // ordered by weight
	reflexive map[string][]*mapping.Relationship
}

type node struct {
	name string
	out  []int
}

// buildDigraph indexes the entities of all maps. A node's weight is its
// position in declaration order across maps; a name declared twice keeps
// its first position. Relationship targets resolve across all maps.
func buildDigraph(maps []*mapping.DataMap) *digraph {
	g := &digraph{reflexive: make(map[string][]*mapping.Relationship)}
	ids := make(map[string]int)
	var entities []*mapping.Entity
	byName := make(map[string]*mapping.Entity)
	for _, m := range maps {
		m.Link()
		for _, e := range m.Entities {
			if _, ok := ids[e.Name]; ok {
				continue
			}
			ids[e.Name] = len(g.nodes)
			byName[e.Name] = e
			g.nodes = append(g.nodes, node{name: e.Name})
			entities = append(entities, e)
		}
	}
	for i, e := range entities {
		for _, r := range e.Relationships {
			if !r.ForeignKeyTo(byName[r.Target]) {
				continue
			}
			if r.Target == e.Name {
				g.reflexive[e.Name] = append(g.reflexive[e.Name], r)
				continue
			}
			t, ok := ids[r.Target]
			if ok && !slices.Contains(g.nodes[t].out, i) {
				g.nodes[t].out = append(g.nodes[t].out, i)
			}
		}
	}
	for i := range g.nodes {
		slices.Sort(g.nodes[i].out)
	}
	return g
}

// components returns the strongly connected components using Tarjan's
// algorithm. Members of each component are sorted by weight.
func (g *digraph) components() [][]int {
	var (
		index   = make([]int, len(g.nodes))
		low     = make([]int, len(g.nodes))
		onStack = make([]bool, len(g.nodes))
		stack   []int
		next    = 1
		comps   [][]int
	)
	var visit func(v int)
	visit = func(v int) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range g.nodes[v].out {
			switch {
			case index[w] == 0:
				visit(w)
				low[v] = min(low[v], low[w])
			case onStack[w]:
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		slices.Sort(comp)
		comps = append(comps, comp)
	}
	for v := range g.nodes {
		if index[v] == 0 {
			visit(v)
		}
	}
	return comps
}

// sort returns the nodes in insert order. Components are contracted and
// sorted topologically by in-degree; among ready components the one with
// the lowest weight goes first, and members of a component keep weight
// order.
func (g *digraph) sort() []int {
	comps := g.components()
	compOf := make([]int, len(g.nodes))
	for c, members := range comps {
		for _, v := range members {
			compOf[v] = c
		}
	}
	out := make([][]int, len(comps))
	indegree := make([]int, len(comps))
	for v, n := range g.nodes {
		for _, w := range n.out {
			a, b := compOf[v], compOf[w]
			if a != b && !slices.Contains(out[a], b) {
				out[a] = append(out[a], b)
				indegree[b]++
			}
		}
	}
	// A component weighs as much as its lightest member.
	weight := func(c int) int { return comps[c][0] }
	var ready []int
	for c := range comps {
		if indegree[c] == 0 {
			ready = append(ready, c)
		}
	}
	order := make([]int, 0, len(g.nodes))
	for len(ready) > 0 {
		slices.SortFunc(ready, func(a, b int) int { return weight(a) - weight(b) })
		c := ready[0]
		ready = ready[1:]
		order = append(order, comps[c]...)
		for _, d := range out[c] {
			if indegree[d]--; indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return order
}
