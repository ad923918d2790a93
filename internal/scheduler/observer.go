package scheduler

import "cmp"

// Observer receives scheduling events as a run produces them. Callers use it
// to journal or trace a run; the scheduler itself performs no I/O.
type Observer[T cmp.Ordered] interface {
	// TaskOrdered is called by Order for each emitted task, position is 0-based.
	TaskOrdered(task T, position int)
	// TaskStarted is called by Simulate when a task is bound to a worker.
	TaskStarted(task T, start, finish int)
	// TaskFinished is called by Simulate when a task's finish tick is reached.
	TaskFinished(task T, at int)
}

// NopObserver ignores every event.
type NopObserver[T cmp.Ordered] struct{}

func (NopObserver[T]) TaskOrdered(T, int) {}
func (NopObserver[T]) TaskStarted(T, int, int) {}
func (NopObserver[T]) TaskFinished(T, int) {}
