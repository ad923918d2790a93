package scheduler

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/ChuLiYu/stepflow/internal/graph"
)

var (
	// ErrInvalidConfiguration reports a worker count below one, a missing
	// duration function, or a negative task duration.
	ErrInvalidConfiguration = errors.New("invalid scheduler configuration")
	// ErrCyclicDependency reports that the precedence edges contain a cycle,
	// so some tasks can never become ready.
	ErrCyclicDependency = errors.New("cyclic dependency")
)

// cycleError builds an ErrCyclicDependency naming the cycle when the graph
// can produce one, or the stuck tasks otherwise.
func cycleError[T cmp.Ordered](g *graph.Graph[T], stuck []T) error {
	if path := g.DetectCycle(); path != nil {
		return fmt.Errorf("%w: %s", ErrCyclicDependency, joinTasks(path, " -> "))
	}
	return fmt.Errorf("%w: tasks %s can never start", ErrCyclicDependency, joinTasks(stuck, ", "))
}

func joinTasks[T cmp.Ordered](tasks []T, sep string) string {
	parts := make([]string, len(tasks))
	for i, t := range tasks {
		parts[i] = fmt.Sprint(t)
	}
	return strings.Join(parts, sep)
}
