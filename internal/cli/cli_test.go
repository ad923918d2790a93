package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/stepflow/internal/storage/wal"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

func init() {
	color.NoColor = true
}

const referenceSteps = `Step C must be finished before step A can begin.
Step C must be finished before step F can begin.
Step A must be finished before step B can begin.
Step A must be finished before step D can begin.
Step B must be finished before step E can begin.
Step D must be finished before step E can begin.
Step F must be finished before step E can begin.
`

// testEnv writes a config journaling into a temp dir plus the reference
// input, and returns their paths.
func testEnv(t *testing.T) (configPath, inputPath, dir string) {
	t.Helper()
	dir = t.TempDir()

	configPath = filepath.Join(dir, "config.yaml")
	config := fmt.Sprintf(`
scheduler:
  workers: 2
  policy: letter
execution:
  tick: 1ms
journal:
  path: %q
  buffer_size: 8
report:
  path: %q
  backups: 1
log:
  level: error
`, filepath.Join(dir, "journal.wal"), filepath.Join(dir, "report.json"))
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	inputPath = filepath.Join(dir, "steps.txt")
	require.NoError(t, os.WriteFile(inputPath, []byte(referenceSteps), 0644))
	return configPath, inputPath, dir
}

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := BuildCLI()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// ============================================================================
// Command tree
// ============================================================================

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()

	assert.NotNil(t, cmd, "BuildCLI should return a non-nil command")
	assert.Equal(t, "stepflow", cmd.Use, "Root command should be 'stepflow'")
	assert.Equal(t, Version, cmd.Version)

	commandNames := make(map[string]bool)
	for _, c := range cmd.Commands() {
		commandNames[c.Name()] = true
	}
	for _, name := range []string{"order", "makespan", "run", "serve", "journal", "report", "status"} {
		assert.True(t, commandNames[name], "Should have '%s' command", name)
	}

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag, "Should have --config flag")
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "configs/default.yaml", configFlag.DefValue)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestBuildMakespanCommand(t *testing.T) {
	cmd := buildMakespanCommand()

	assert.Equal(t, "makespan FILE", cmd.Use)
	for _, name := range []string{"workers", "base", "policy", "json", "timeline"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "Should have --%s flag", name)
	}
	assert.Equal(t, "w", cmd.Flags().Lookup("workers").Shorthand)
	assert.NotNil(t, cmd.RunE, "RunE function should be set")
}

// ============================================================================
// Configuration
// ============================================================================

func TestLoadConfig_ValidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test_config.yaml")
	configContent := `
scheduler:
  workers: 4
  policy: rank
  base: 60
execution:
  tick: 50ms
  task_timeout: 5s
journal:
  path: "./test_journal.wal"
  buffer_size: 50
  sync: true
report:
  path: "./test_report.json"
  backups: 2
metrics:
  enabled: true
  port: 8081
server:
  grpc_addr: ":6000"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := loadConfig(configPath)
	require.NoError(t, err, "loadConfig should not return an error")

	assert.Equal(t, 4, cfg.Scheduler.Workers)
	assert.Equal(t, "rank", cfg.Scheduler.Policy)
	assert.Equal(t, 60, cfg.Scheduler.Base)
	assert.Equal(t, 50*time.Millisecond, cfg.Execution.Tick)
	assert.Equal(t, 5*time.Second, cfg.Execution.TaskTimeout)
	assert.Equal(t, "./test_journal.wal", cfg.Journal.Path)
	assert.Equal(t, 50, cfg.Journal.BufferSize)
	assert.True(t, cfg.Journal.Sync)
	assert.Equal(t, 2, cfg.Report.Backups)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 8081, cfg.Metrics.Port)
	assert.Equal(t, ":6000", cfg.Server.GRPCAddr)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr, "unset fields keep their default")

	cc := cfg.controllerConfig()
	assert.Equal(t, 4, cc.Workers)
	assert.Equal(t, "rank", cc.DurationPolicy)
	assert.Equal(t, "./test_journal.wal", cc.WALPath)
	assert.Equal(t, "./test_report.json", cc.ReportPath)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Run("default path falls back to defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := loadConfig(defaultConfigPath)
		require.NoError(t, err)
		assert.Equal(t, defaultConfig(), cfg)
	})

	t.Run("explicit path is an error", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("scheduler: [workers"), 0644))

	_, err := loadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())

	_, err = parseLevel("loud")
	assert.Error(t, err)
}

// ============================================================================
// Commands
// ============================================================================

func TestOrderCommand(t *testing.T) {
	configPath, inputPath, _ := testEnv(t)

	out, err := executeCLI(t, "-c", configPath, "order", inputPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Order: CABDFE")
	assert.Contains(t, out, "6 tasks")
}

func TestOrderCommand_JSON(t *testing.T) {
	configPath, inputPath, _ := testEnv(t)

	out, err := executeCLI(t, "-c", configPath, "order", "--json", inputPath)
	require.NoError(t, err)

	var report types.PlanReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, []types.TaskID{"C", "A", "B", "D", "F", "E"}, report.Order)
}

func TestMakespanCommand(t *testing.T) {
	configPath, inputPath, _ := testEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"config workers", nil, "Makespan: 15"},
		{"one worker", []string{"--workers", "1"}, "Makespan: 21"},
		{"base 60 on five workers", []string{"-w", "5", "--base", "60"}, "Makespan: 253"},
		{"unit policy", []string{"-w", "1", "--policy", "unit"}, "Makespan: 6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-c", configPath, "makespan", inputPath}, tt.args...)
			out, err := executeCLI(t, args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestMakespanCommand_Timeline(t *testing.T) {
	configPath, inputPath, _ := testEnv(t)

	out, err := executeCLI(t, "-c", configPath, "makespan", "-t", inputPath)
	require.NoError(t, err)
	assert.Contains(t, out, "FINISH")
	assert.Contains(t, out, "███")
}

func TestMakespanCommand_Errors(t *testing.T) {
	configPath, inputPath, dir := testEnv(t)

	_, err := executeCLI(t, "-c", configPath, "makespan", "-w", "0", inputPath)
	assert.ErrorContains(t, err, "invalid scheduler configuration")

	cyclic := filepath.Join(dir, "cycle.txt")
	require.NoError(t, os.WriteFile(cyclic, []byte(
		"Step A must be finished before step B can begin.\nStep B must be finished before step A can begin.\n"), 0644))
	_, err = executeCLI(t, "-c", configPath, "makespan", cyclic)
	assert.ErrorContains(t, err, "A -> B -> A")

	_, err = executeCLI(t, "-c", configPath, "makespan")
	assert.Error(t, err, "FILE is required")
}

func TestRunCommand(t *testing.T) {
	configPath, inputPath, _ := testEnv(t)

	out, err := executeCLI(t, "-c", configPath, "run", "--tick", "100us", inputPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Makespan: 15")
	for _, task := range []string{"A", "B", "C", "D", "E", "F"} {
		assert.Contains(t, out, "✓ "+task)
	}
	assert.Contains(t, out, "Wall time:")
}

func TestJournalAndReportCommands(t *testing.T) {
	configPath, inputPath, dir := testEnv(t)

	_, err := executeCLI(t, "-c", configPath, "makespan", inputPath)
	require.NoError(t, err)

	ids, err := wal.RunIDs(filepath.Join(dir, "journal.wal"))
	require.NoError(t, err)
	require.Len(t, ids, 1)

	t.Run("runs", func(t *testing.T) {
		out, err := executeCLI(t, "-c", configPath, "journal", "--runs")
		require.NoError(t, err)
		assert.Contains(t, out, ids[0])
	})

	t.Run("timeline", func(t *testing.T) {
		out, err := executeCLI(t, "-c", configPath, "journal", "--run", ids[0])
		require.NoError(t, err)
		assert.Contains(t, out, ids[0])
		assert.Contains(t, out, "FINISH")
	})

	t.Run("stats", func(t *testing.T) {
		out, err := executeCLI(t, "-c", configPath, "journal", "--stats")
		require.NoError(t, err)
		assert.Contains(t, out, "Runs:      1")
		assert.Contains(t, out, "Corrupted: 0")
	})

	t.Run("validate", func(t *testing.T) {
		out, err := executeCLI(t, "-c", configPath, "journal", "--validate")
		require.NoError(t, err)
		assert.Contains(t, out, "journal is valid")
	})

	t.Run("dump", func(t *testing.T) {
		out, err := executeCLI(t, "-c", configPath, "journal")
		require.NoError(t, err)
		assert.Contains(t, out, "RUN")
		assert.Contains(t, out, "FINISH")
	})

	t.Run("report", func(t *testing.T) {
		out, err := executeCLI(t, "-c", configPath, "report")
		require.NoError(t, err)
		assert.Contains(t, out, ids[0])
		assert.Contains(t, out, "Makespan: 15 on 2 workers")
	})

	t.Run("status", func(t *testing.T) {
		out, err := executeCLI(t, "-c", configPath, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Workers:      2")
		assert.Contains(t, out, ids[0])
	})
}

func TestReportCommand_NoReport(t *testing.T) {
	configPath, _, _ := testEnv(t)

	_, err := executeCLI(t, "-c", configPath, "report")
	assert.ErrorContains(t, err, "not found")
}

func TestServe_StopsOnCancel(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	cfg := defaultConfig()
	cfg.Journal.Path = ""
	cfg.Report.Path = ""
	cfg.Server.GRPCAddr = "127.0.0.1:0"
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestFormatOrder(t *testing.T) {
	assert.Equal(t, "CABDFE", formatOrder([]types.TaskID{"C", "A", "B", "D", "F", "E"}))
	assert.Equal(t, "build test", formatOrder([]types.TaskID{"build", "test"}))
	assert.Equal(t, "", formatOrder(nil))
}
