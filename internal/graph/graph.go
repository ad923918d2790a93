// Package graph holds the precedence structure a scheduling run consumes:
// the task set, the deduplicated edges between tasks, and the per-run
// frontier that reports which tasks have no outstanding prerequisite.
package graph

import (
	"cmp"
	"slices"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

// Graph is an immutable directed graph over tasks. Build it once with New and
// hand out a fresh Frontier to every run that consumes it.
type Graph[T cmp.Ordered] struct {
	tasks    []T        // every task, ascending
	succ     map[T][]T  // task -> tasks it blocks, ascending
	pred     map[T][]T  // task -> tasks blocking it, ascending
	isolated map[T]bool // declared tasks that appear in no edge
	edges    int        // distinct edges
}

// New builds a Graph from precedence pairs. The task set is every identifier
// appearing in an edge plus any explicitly declared isolated tasks. Duplicate
// edges collapse to one constraint.
func New[T cmp.Ordered](edges []types.Edge[T], isolated ...T) *Graph[T] {
	g := &Graph[T]{
		succ:     make(map[T][]T),
		pred:     make(map[T][]T),
		isolated: make(map[T]bool),
	}

	seen := make(map[T]bool)
	addTask := func(t T) {
		if !seen[t] {
			seen[t] = true
			g.tasks = append(g.tasks, t)
		}
	}

	edgeSet := make(map[types.Edge[T]]bool, len(edges))
	for _, e := range edges {
		addTask(e.Prerequisite)
		addTask(e.Dependent)
		if edgeSet[e] {
			continue
		}
		edgeSet[e] = true
		g.succ[e.Prerequisite] = append(g.succ[e.Prerequisite], e.Dependent)
		g.pred[e.Dependent] = append(g.pred[e.Dependent], e.Prerequisite)
		g.edges++
	}

	for _, t := range isolated {
		if !seen[t] {
			g.isolated[t] = true
		}
		addTask(t)
	}

	// Sort everything for deterministic traversal
	slices.Sort(g.tasks)
	for k := range g.succ {
		slices.Sort(g.succ[k])
	}
	for k := range g.pred {
		slices.Sort(g.pred[k])
	}

	return g
}

// Tasks returns every task in ascending order.
func (g *Graph[T]) Tasks() []T {
	return slices.Clone(g.tasks)
}

// Len returns the number of tasks.
func (g *Graph[T]) Len() int {
	return len(g.tasks)
}

// EdgeCount returns the number of distinct edges.
func (g *Graph[T]) EdgeCount() int {
	return g.edges
}

// Has reports whether t belongs to the task set.
func (g *Graph[T]) Has(t T) bool {
	_, ok := slices.BinarySearch(g.tasks, t)
	return ok
}

// IsIsolated reports whether t was declared explicitly and appears in no edge.
func (g *Graph[T]) IsIsolated(t T) bool {
	return g.isolated[t]
}

// Isolated returns the isolated tasks in ascending order.
func (g *Graph[T]) Isolated() []T {
	out := make([]T, 0, len(g.isolated))
	for _, t := range g.tasks {
		if g.isolated[t] {
			out = append(out, t)
		}
	}
	return out
}

// Successors returns the tasks that t blocks.
func (g *Graph[T]) Successors(t T) []T {
	return slices.Clone(g.succ[t])
}

// Predecessors returns the tasks blocking t.
func (g *Graph[T]) Predecessors(t T) []T {
	return slices.Clone(g.pred[t])
}

// DetectCycle returns a closed cycle path (first element repeated at the end)
// if one exists, or nil if the graph is acyclic. Uses DFS with white/gray/black
// colouring and visits tasks in ascending order so the result is stable.
func (g *Graph[T]) DetectCycle() []T {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[T]int, len(g.tasks))
	parent := make(map[T]T, len(g.tasks))

	var dfs func(node T) []T
	dfs = func(node T) []T {
		color[node] = gray
		for _, next := range g.succ[node] {
			if color[next] == gray {
				cycle := []T{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				slices.Reverse(cycle)
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, t := range g.tasks {
		if color[t] == white {
			if cycle := dfs(t); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
