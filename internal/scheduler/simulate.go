package scheduler

import (
	"cmp"
	"fmt"

	"github.com/ChuLiYu/stepflow/internal/graph"
	"github.com/ChuLiYu/stepflow/internal/taskstate"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

// Config controls one simulation run.
type Config[T cmp.Ordered] struct {
	Workers  int             // concurrent worker slots, at least 1
	Duration DurationFunc[T] // ticks each task runs for, never negative
	Observer Observer[T]     // optional
}

// Schedule is the outcome of a simulation.
type Schedule[T cmp.Ordered] struct {
	Workers     int
	Makespan    int
	PeakWorkers int                      // most tasks in progress at once
	Timeline    []types.ScheduledTask[T] // ordered by start tick, then task
}

// StartOrder returns the tasks in the order they were started.
func (s *Schedule[T]) StartOrder() []T {
	out := make([]T, len(s.Timeline))
	for i, st := range s.Timeline {
		out[i] = st.Task
	}
	return out
}

// ComputeMakespan returns the minimum simulated time to finish every task
// named in edges with workerCount workers and the given duration function.
func ComputeMakespan[T cmp.Ordered](edges []types.Edge[T], workerCount int, durationFn DurationFunc[T]) (int, error) {
	s, err := Simulate(graph.New(edges), Config[T]{Workers: workerCount, Duration: durationFn})
	if err != nil {
		return 0, err
	}
	return s.Makespan, nil
}

// Simulate runs the discrete-event simulation over g.
//
// At every tick it first retires each task finishing at that tick, then binds
// ready tasks to free workers smallest identifier first, and only then jumps
// to the next completion. A task never starts before all of its prerequisites
// have finished and never runs for anything but its duration.
func Simulate[T cmp.Ordered](g *graph.Graph[T], cfg Config[T]) (*Schedule[T], error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: worker count must be at least 1, got %d", ErrInvalidConfiguration, cfg.Workers)
	}
	if cfg.Duration == nil {
		return nil, fmt.Errorf("%w: duration function is required", ErrInvalidConfiguration)
	}
	obs := cfg.Observer
	if obs == nil {
		obs = NopObserver[T]{}
	}

	tasks := g.Tasks()
	durations := make(map[T]int, len(tasks))
	for _, t := range tasks {
		d := cfg.Duration(t)
		if d < 0 {
			return nil, fmt.Errorf("%w: negative duration %d for task %v", ErrInvalidConfiguration, d, t)
		}
		durations[t] = d
	}

	st := &simState[T]{
		frontier: g.Frontier(),
		tracker:  taskstate.New(tasks),
		ready:    newReadyQueue[T](),
		running:  newCompletionQueue[T](),
	}
	if err := st.release(st.frontier.Roots()); err != nil {
		return nil, err
	}

	for st.tracker.Remaining() > 0 {
		for st.running.len() < cfg.Workers {
			t, ok := st.ready.pop()
			if !ok {
				break
			}
			finish := st.now + durations[t]
			if err := st.tracker.MarkInProgress(t, st.now, finish); err != nil {
				return nil, fmt.Errorf("scheduler state: %w", err)
			}
			st.running.push(t, finish)
			obs.TaskStarted(t, st.now, finish)
		}
		st.peak = max(st.peak, st.running.len())

		next, ok := st.running.peek()
		if !ok {
			// Nothing running and nothing assignable while tasks remain.
			return nil, cycleError(g, st.tracker.Unfinished())
		}
		st.now = next.finish

		for {
			c, ok := st.running.peek()
			if !ok || c.finish != st.now {
				break
			}
			st.running.pop()
			if err := st.tracker.MarkDone(c.task); err != nil {
				return nil, fmt.Errorf("scheduler state: %w", err)
			}
			obs.TaskFinished(c.task, st.now)
			if err := st.release(st.frontier.Retire(c.task)); err != nil {
				return nil, err
			}
		}
	}

	return &Schedule[T]{
		Workers:     cfg.Workers,
		Makespan:    st.now,
		PeakWorkers: st.peak,
		Timeline:    st.tracker.Timeline(),
	}, nil
}

// simState is the scheduler state of one run: remaining tasks and edges (via
// the frontier and tracker), in-progress tasks with their finish ticks, and
// the current tick.
type simState[T cmp.Ordered] struct {
	frontier *graph.Frontier[T]
	tracker  *taskstate.Tracker[T]
	ready    *readyQueue[T]
	running  *completionQueue[T]
	now      int
	peak     int
}

func (s *simState[T]) release(tasks []T) error {
	for _, t := range tasks {
		if err := s.tracker.MarkReady(t); err != nil {
			return fmt.Errorf("scheduler state: %w", err)
		}
		s.ready.push(t)
	}
	return nil
}
