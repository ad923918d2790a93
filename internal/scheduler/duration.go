package scheduler

import (
	"cmp"
	"fmt"
	"slices"
)

// DurationFunc maps a task to the number of ticks it occupies a worker.
// It must be deterministic; a negative result is a configuration error.
type DurationFunc[T cmp.Ordered] func(task T) int

// Policy names accepted by PolicyByName.
const (
	PolicyLetter = "letter"
	PolicyRank   = "rank"
	PolicyUnit   = "unit"
)

// LetterDuration gives a single upper-case letter task base plus its position
// in the alphabet, so A takes base+1 and Z takes base+26. Any other
// identifier yields -1, which Simulate rejects.
func LetterDuration[T ~string](base int) DurationFunc[T] {
	return func(task T) int {
		if len(task) != 1 || task[0] < 'A' || task[0] > 'Z' {
			return -1
		}
		return base + int(task[0]-'A') + 1
	}
}

// RankDuration gives each task base plus its 1-indexed rank in tasks once
// sorted. Tasks outside the set yield -1.
func RankDuration[T cmp.Ordered](tasks []T, base int) DurationFunc[T] {
	sorted := slices.Clone(tasks)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return func(task T) int {
		i, ok := slices.BinarySearch(sorted, task)
		if !ok {
			return -1
		}
		return base + i + 1
	}
}

// ConstantDuration gives every task the same duration.
func ConstantDuration[T cmp.Ordered](d int) DurationFunc[T] {
	return func(T) int { return d }
}

// PolicyByName resolves a named duration policy. base is ignored by the unit
// policy; tasks is only used by the rank policy.
func PolicyByName[T ~string](name string, base int, tasks []T) (DurationFunc[T], error) {
	switch name {
	case PolicyLetter, "":
		return LetterDuration[T](base), nil
	case PolicyRank:
		return RankDuration(tasks, base), nil
	case PolicyUnit:
		return ConstantDuration[T](1), nil
	default:
		return nil, fmt.Errorf("%w: unknown duration policy %q", ErrInvalidConfiguration, name)
	}
}
