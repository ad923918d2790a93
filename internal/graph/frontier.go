package graph

import (
	"cmp"
	"slices"
)

// Frontier is the mutable readiness view of one scheduling run. It keeps a
// remaining in-degree counter per task so that readiness checks are O(1) and
// retiring a task only touches its successors. A Frontier belongs to exactly
// one run and is not safe for concurrent use.
type Frontier[T cmp.Ordered] struct {
	g        *Graph[T]
	indegree map[T]int
	retired  map[T]bool
}

// Frontier returns a fresh frontier with every edge still unsatisfied.
func (g *Graph[T]) Frontier() *Frontier[T] {
	f := &Frontier[T]{
		g:        g,
		indegree: make(map[T]int, len(g.tasks)),
		retired:  make(map[T]bool, len(g.tasks)),
	}
	for _, t := range g.tasks {
		f.indegree[t] = len(g.pred[t])
	}
	return f
}

// Roots returns the tasks that have no prerequisite at all, ascending.
func (f *Frontier[T]) Roots() []T {
	var roots []T
	for _, t := range f.g.tasks {
		if len(f.g.pred[t]) == 0 {
			roots = append(roots, t)
		}
	}
	return roots
}

// Retire removes every edge whose prerequisite is t and returns the tasks
// whose last outstanding prerequisite that was, ascending. Retiring the same
// task twice is a no-op.
func (f *Frontier[T]) Retire(t T) []T {
	if f.retired[t] {
		return nil
	}
	f.retired[t] = true

	var released []T
	for _, next := range f.g.succ[t] {
		f.indegree[next]--
		if f.indegree[next] == 0 {
			released = append(released, next)
		}
	}
	slices.Sort(released)
	return released
}

// Outstanding returns how many unsatisfied prerequisites t still has.
func (f *Frontier[T]) Outstanding(t T) int {
	return f.indegree[t]
}

// Blocked returns the tasks that still wait on at least one prerequisite.
func (f *Frontier[T]) Blocked() []T {
	var blocked []T
	for _, t := range f.g.tasks {
		if f.indegree[t] > 0 {
			blocked = append(blocked, t)
		}
	}
	return blocked
}
