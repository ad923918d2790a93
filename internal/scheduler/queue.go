package scheduler

import (
	"cmp"

	"github.com/emirpasic/gods/queues/priorityqueue"
)

// readyQueue hands out ready tasks smallest identifier first.
type readyQueue[T cmp.Ordered] struct {
	q *priorityqueue.Queue
}

func newReadyQueue[T cmp.Ordered]() *readyQueue[T] {
	return &readyQueue[T]{
		q: priorityqueue.NewWith(func(a, b interface{}) int {
			return cmp.Compare(a.(T), b.(T))
		}),
	}
}

func (r *readyQueue[T]) push(tasks ...T) {
	for _, t := range tasks {
		r.q.Enqueue(t)
	}
}

func (r *readyQueue[T]) pop() (T, bool) {
	v, ok := r.q.Dequeue()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

func (r *readyQueue[T]) len() int {
	return r.q.Size()
}

// completion is an in-progress task and the tick it finishes at.
type completion[T cmp.Ordered] struct {
	task   T
	finish int
}

// completionQueue orders running tasks by finish tick, then identifier.
type completionQueue[T cmp.Ordered] struct {
	q *priorityqueue.Queue
}

func newCompletionQueue[T cmp.Ordered]() *completionQueue[T] {
	return &completionQueue[T]{
		q: priorityqueue.NewWith(func(a, b interface{}) int {
			x, y := a.(completion[T]), b.(completion[T])
			if c := cmp.Compare(x.finish, y.finish); c != 0 {
				return c
			}
			return cmp.Compare(x.task, y.task)
		}),
	}
}

func (c *completionQueue[T]) push(task T, finish int) {
	c.q.Enqueue(completion[T]{task: task, finish: finish})
}

func (c *completionQueue[T]) peek() (completion[T], bool) {
	v, ok := c.q.Peek()
	if !ok {
		return completion[T]{}, false
	}
	return v.(completion[T]), true
}

func (c *completionQueue[T]) pop() (completion[T], bool) {
	v, ok := c.q.Dequeue()
	if !ok {
		return completion[T]{}, false
	}
	return v.(completion[T]), true
}

func (c *completionQueue[T]) len() int {
	return c.q.Size()
}
