package taskstate

import (
	"errors"
	"testing"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func newTestTracker() *Tracker[string] {
	return New([]string{"A", "B", "C"})
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func assertError(t *testing.T, err error, want error) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error %v, got nil", want)
		return
	}
	if !errors.Is(err, want) {
		t.Errorf("expected error %v, got %v", want, err)
	}
}

func assertStatus(t *testing.T, tr *Tracker[string], task string, want types.TaskStatus) {
	t.Helper()
	got, ok := tr.Status(task)
	if !ok {
		t.Errorf("task %s not tracked", task)
		return
	}
	if got != want {
		t.Errorf("task %s status: got %s, want %s", task, got, want)
	}
}

// ============================================================================
// Unit Tests
// ============================================================================

func TestNew(t *testing.T) {
	tr := New([]string{"A", "B", "A"})

	if tr.Remaining() != 2 {
		t.Errorf("Remaining: got %d, want 2", tr.Remaining())
	}
	assertStatus(t, tr, "A", types.StatusPending)
	assertStatus(t, tr, "B", types.StatusPending)

	stats := tr.Stats()
	if stats["pending"] != 2 || stats["done"] != 0 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestFullLifecycle(t *testing.T) {
	tr := newTestTracker()

	assertNoError(t, tr.MarkReady("A"))
	assertStatus(t, tr, "A", types.StatusReady)

	assertNoError(t, tr.MarkInProgress("A", 0, 3))
	assertStatus(t, tr, "A", types.StatusInProgress)
	if tr.InProgress() != 1 {
		t.Errorf("InProgress: got %d, want 1", tr.InProgress())
	}

	assertNoError(t, tr.MarkDone("A"))
	assertStatus(t, tr, "A", types.StatusDone)
	if tr.Remaining() != 2 {
		t.Errorf("Remaining: got %d, want 2", tr.Remaining())
	}
	if tr.InProgress() != 0 {
		t.Errorf("InProgress: got %d, want 0", tr.InProgress())
	}
}

func TestInvalidTransitions(t *testing.T) {
	tr := newTestTracker()

	assertError(t, tr.MarkReady("Z"), ErrTaskNotFound)
	assertError(t, tr.MarkInProgress("A", 0, 1), ErrNotReady)
	assertError(t, tr.MarkDone("A"), ErrNotInProgress)

	assertNoError(t, tr.MarkReady("A"))
	assertError(t, tr.MarkReady("A"), ErrNotPending)
	assertError(t, tr.MarkDone("A"), ErrNotInProgress)

	assertNoError(t, tr.MarkInProgress("A", 0, 1))
	assertError(t, tr.MarkInProgress("A", 0, 1), ErrNotReady)

	assertNoError(t, tr.MarkDone("A"))
	assertError(t, tr.MarkDone("A"), ErrNotInProgress)
	assertError(t, tr.MarkReady("A"), ErrNotPending)
}

func TestUnfinished(t *testing.T) {
	tr := newTestTracker()
	assertNoError(t, tr.MarkReady("B"))
	assertNoError(t, tr.MarkInProgress("B", 0, 2))
	assertNoError(t, tr.MarkDone("B"))

	got := tr.Unfinished()
	if len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Errorf("Unfinished: got %v, want [A C]", got)
	}
}

func TestTimeline(t *testing.T) {
	tr := newTestTracker()
	for _, task := range []string{"C", "B", "A"} {
		assertNoError(t, tr.MarkReady(task))
	}
	assertNoError(t, tr.MarkInProgress("C", 0, 3))
	assertNoError(t, tr.MarkInProgress("B", 3, 5))
	assertNoError(t, tr.MarkInProgress("A", 3, 4))

	want := []types.ScheduledTask[string]{
		{Task: "C", Start: 0, Finish: 3},
		{Task: "A", Start: 3, Finish: 4},
		{Task: "B", Start: 3, Finish: 5},
	}
	got := tr.Timeline()
	if len(got) != len(want) {
		t.Fatalf("Timeline length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Timeline[%d]: got %+v, want %+v", i, got[i], want[i])
		}
	}
}
