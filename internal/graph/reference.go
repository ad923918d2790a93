package graph

import (
	"cmp"
	"slices"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

// ReadyTasks returns every task in remaining that is not the dependent of any
// edge in edges, ascending. It is a pure rescan over its inputs; Frontier is
// the incremental equivalent used by the scheduler.
func ReadyTasks[T cmp.Ordered](remaining []T, edges []types.Edge[T]) []T {
	blocked := make(map[T]bool, len(edges))
	for _, e := range edges {
		blocked[e.Dependent] = true
	}

	seen := make(map[T]bool, len(remaining))
	var ready []T
	for _, t := range remaining {
		if blocked[t] || seen[t] {
			continue
		}
		seen[t] = true
		ready = append(ready, t)
	}
	slices.Sort(ready)
	return ready
}

// Retire returns edges without every edge whose prerequisite is task,
// including duplicate instances of the same constraint. The input slice is
// not modified.
func Retire[T cmp.Ordered](task T, edges []types.Edge[T]) []types.Edge[T] {
	out := make([]types.Edge[T], 0, len(edges))
	for _, e := range edges {
		if e.Prerequisite != task {
			out = append(out, e)
		}
	}
	return out
}

// ReadyAfter reports which tasks are ready to start once every task in
// completed has finished. Completed tasks are excluded from the result.
func ReadyAfter[T cmp.Ordered](edges []types.Edge[T], isolated []T, completed []T) []T {
	g := New(edges, isolated...)

	done := make(map[T]bool, len(completed))
	remainingEdges := edges
	for _, t := range completed {
		done[t] = true
		remainingEdges = Retire(t, remainingEdges)
	}

	remaining := make([]T, 0, g.Len())
	for _, t := range g.tasks {
		if !done[t] {
			remaining = append(remaining, t)
		}
	}
	return ReadyTasks(remaining, remainingEdges)
}
