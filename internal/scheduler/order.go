package scheduler

import (
	"cmp"

	"github.com/ChuLiYu/stepflow/internal/graph"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

// ComputeOrder returns the canonical topological order of the tasks named in
// edges: among all ready tasks the smallest identifier always goes first.
func ComputeOrder[T cmp.Ordered](edges []types.Edge[T]) ([]T, error) {
	return Order(graph.New(edges), nil)
}

// Order returns the canonical order of g. Isolated tasks, which appear in no
// edge, are appended after every connected task in ascending order. obs may
// be nil.
func Order[T cmp.Ordered](g *graph.Graph[T], obs Observer[T]) ([]T, error) {
	if obs == nil {
		obs = NopObserver[T]{}
	}

	f := g.Frontier()
	ready := newReadyQueue[T]()
	for _, t := range f.Roots() {
		if !g.IsIsolated(t) {
			ready.push(t)
		}
	}

	isolated := g.Isolated()
	connected := g.Len() - len(isolated)
	order := make([]T, 0, g.Len())

	for len(order) < connected {
		next, ok := ready.pop()
		if !ok {
			return nil, cycleError(g, f.Blocked())
		}
		obs.TaskOrdered(next, len(order))
		order = append(order, next)
		ready.push(f.Retire(next)...)
	}

	for _, t := range isolated {
		obs.TaskOrdered(t, len(order))
		order = append(order, t)
	}
	return order, nil
}
