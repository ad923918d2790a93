package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/ChuLiYu/stepflow/internal/storage/wal"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

var (
	bold     = color.New(color.Bold).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
	cyan     = color.New(color.FgCyan).SprintFunc()
	green    = color.New(color.FgGreen).SprintFunc()
	red      = color.New(color.FgRed).SprintFunc()
	yellow   = color.New(color.FgYellow).SprintFunc()
	boldCyan = color.New(color.Bold, color.FgCyan).SprintFunc()
)

// Widest gantt bar before the timeline is scaled down.
const maxBarWidth = 60

// formatOrder prints single-character IDs back to back (CABDFE) and
// anything longer separated by spaces.
func formatOrder(order []types.TaskID) string {
	parts := make([]string, len(order))
	compact := true
	for i, t := range order {
		parts[i] = string(t)
		if utf8.RuneCountInString(parts[i]) != 1 {
			compact = false
		}
	}
	if compact {
		return strings.Join(parts, "")
	}
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printOrder(w io.Writer, report *types.PlanReport) {
	fmt.Fprintf(w, "%s %s\n", bold("Order:"), green(formatOrder(report.Order)))
	fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("%d tasks, run %s", report.Tasks, report.RunID)))
}

func printSchedule(w io.Writer, report *types.PlanReport, timeline bool) {
	fmt.Fprintf(w, "%s %s\n", bold("Makespan:"), green(report.Makespan))
	fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("%d tasks on %d workers, run %s", report.Tasks, report.Workers, report.RunID)))
	if timeline {
		printTimeline(w, report.Timeline, report.Makespan)
	}
}

// printTimeline draws one gantt row per task. Rows with Finish < 0 never
// finished and are drawn open ended.
func printTimeline(w io.Writer, rows []types.ScheduledTask[types.TaskID], makespan int) {
	if len(rows) == 0 {
		return
	}
	scale := 1
	if makespan > maxBarWidth {
		scale = (makespan + maxBarWidth - 1) / maxBarWidth
	}

	width := 4
	for _, r := range rows {
		width = max(width, utf8.RuneCountInString(string(r.Task)))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-*s %6s %6s\n", width, bold("TASK"), bold("START"), bold("FINISH"))
	for _, r := range rows {
		if r.Finish < 0 {
			fmt.Fprintf(w, "  %-*s %6d %6s  %s\n", width, r.Task, r.Start, "-", yellow("running"))
			continue
		}
		bar := strings.Repeat(" ", r.Start/scale) + strings.Repeat("█", max(1, (r.Finish-r.Start)/scale))
		fmt.Fprintf(w, "  %-*s %6d %6d  %s\n", width, r.Task, r.Start, r.Finish, cyan(bar))
	}
	if scale > 1 {
		fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("one column = %d ticks", scale)))
	}
}

// printResults lists per-task outcomes. report is nil for a failed run.
func printResults(w io.Writer, report *types.PlanReport, results []types.ExecutionResult) {
	if len(results) == 0 && report == nil {
		return
	}
	fmt.Fprintln(w)
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(w, "  %s %-6s %s\n", green("✓"), r.Task, dim(fmt.Sprintf("%dms", r.DurationMs)))
		} else {
			fmt.Fprintf(w, "  %s %-6s %s\n", red("✗"), r.Task, red(r.Error))
		}
	}
	if report != nil {
		fmt.Fprintf(w, "\n%s %s\n", bold("Wall time:"), time.Duration(report.ElapsedMs)*time.Millisecond)
	}
}

func printReport(w io.Writer, report types.PlanReport) {
	fmt.Fprintf(w, "%s %s\n", bold("Run:"), report.RunID)
	fmt.Fprintf(w, "%s %s\n", bold("Mode:"), report.Mode)
	fmt.Fprintf(w, "%s %s\n", bold("Created:"), time.UnixMilli(report.CreatedAt).Format(time.RFC3339))
	fmt.Fprintf(w, "%s %s\n", bold("Order:"), green(formatOrder(report.Order)))
	if report.Mode != types.ModeOrder {
		fmt.Fprintf(w, "%s %d on %d workers\n", bold("Makespan:"), report.Makespan, report.Workers)
		printTimeline(w, report.Timeline, report.Makespan)
	}
}

func printStats(w io.Writer, path string, stats *wal.WALStats) {
	fmt.Fprintf(w, "%s %s\n", bold("Journal:"), path)
	fmt.Fprintf(w, "  ├─ Events:    %d (seq %d..%d)\n", stats.TotalEvents, stats.FirstSeq, stats.LastSeq)
	fmt.Fprintf(w, "  ├─ Runs:      %d\n", stats.Runs)
	for _, t := range []wal.EventType{wal.EventRun, wal.EventOrder, wal.EventStart, wal.EventFinish} {
		fmt.Fprintf(w, "  │  └─ %-6s %d\n", t, stats.EventTypes[t])
	}
	corrupted := green("0")
	if stats.CorruptedCount > 0 {
		corrupted = red(stats.CorruptedCount)
	}
	fmt.Fprintf(w, "  └─ Corrupted: %s\n", corrupted)
}
