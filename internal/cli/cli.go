// ============================================================================
// stepflow CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra command tree for the stepflow binary
//
// Command Structure:
//   stepflow                       # Root command
//   ├── order FILE                 # Canonical serial order
//   ├── makespan FILE              # Simulated makespan on W workers
//   │   └── --workers --base --policy --timeline
//   ├── run FILE                   # Replay the schedule on real goroutines
//   │   └── --workers --base --policy --tick
//   ├── serve                      # gRPC + HTTP (+ metrics) until SIGINT/SIGTERM
//   ├── journal                    # Inspect the run journal
//   │   └── --run --runs --stats --validate
//   ├── report                     # Show the last persisted report
//   ├── status                     # Show configuration and stored state
//   ├── --config, -c               # Config file (default: configs/default.yaml)
//   └── --log-level                # debug, info, warn, error
//
// Input files:
//   FILE is read by internal/input; the extension picks the format
//   (.txt sentences, .yaml, .json, .hcl).
//
// Configuration:
//   YAML sections scheduler, execution, journal, report, metrics, server, log.
//   A missing default config file means built-in defaults. Command flags
//   override the file when they are set explicitly.
//
// Signal Handling:
//   serve and run stop on SIGINT/SIGTERM. serve drains gRPC and HTTP
//   requests for server.shutdown_timeout, then closes the journal.
//
// ============================================================================

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ChuLiYu/stepflow/internal/controller"
	"github.com/ChuLiYu/stepflow/internal/httpapi"
	"github.com/ChuLiYu/stepflow/internal/input"
	"github.com/ChuLiYu/stepflow/internal/metrics"
	"github.com/ChuLiYu/stepflow/internal/server"
	"github.com/ChuLiYu/stepflow/internal/snapshot"
	"github.com/ChuLiYu/stepflow/internal/storage/wal"
)

// Version is reported by --version and GET /health.
var Version = "1.0.0"

var (
	configFile string
	logLevel   string
)

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stepflow",
		Short: "stepflow: a dependency-constrained task scheduler",
		Long: `stepflow orders tasks that depend on each other:
- canonical serial order (smallest ready task first)
- makespan on W parallel workers with per-task durations
- concurrent replay of the schedule on a worker pool
- gRPC and HTTP APIs with Prometheus metrics`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")

	rootCmd.AddCommand(buildOrderCommand())
	rootCmd.AddCommand(buildMakespanCommand())
	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildJournalCommand())
	rootCmd.AddCommand(buildReportCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

// setup loads the config and applies the log level. slog.Default() loggers
// captured by other packages honour SetLogLoggerLevel.
func setup() (*Config, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	slog.SetLogLoggerLevel(level)
	return cfg, nil
}

// scheduleFlags are the per-run overrides shared by makespan and run.
type scheduleFlags struct {
	workers int
	base    int
	policy  string
}

func (f *scheduleFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "number of workers (overrides scheduler.workers)")
	cmd.Flags().IntVar(&f.base, "base", 0, "duration base added to every task (overrides scheduler.base)")
	cmd.Flags().StringVar(&f.policy, "policy", "", "duration policy: letter, rank or unit (overrides scheduler.policy)")
}

func (f *scheduleFlags) apply(cmd *cobra.Command, cfg *Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Scheduler.Workers = f.workers
	}
	if cmd.Flags().Changed("base") {
		cfg.Scheduler.Base = f.base
	}
	if cmd.Flags().Changed("policy") {
		cfg.Scheduler.Policy = f.policy
	}
}

// openController creates a controller for a one-shot command.
func openController(cfg *Config) (*controller.Controller, error) {
	ctrl, err := controller.NewController(cfg.controllerConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}
	return ctrl, nil
}

// ============================================================================
// order / makespan / run
// ============================================================================

func buildOrderCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "order FILE",
		Short: "Print the canonical execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			plan, err := input.Load(args[0])
			if err != nil {
				return err
			}
			ctrl, err := openController(cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			report, err := ctrl.Order(plan.Edges, plan.Tasks)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printOrder(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func buildMakespanCommand() *cobra.Command {
	var flags scheduleFlags
	var asJSON, timeline bool

	cmd := &cobra.Command{
		Use:   "makespan FILE",
		Short: "Simulate the schedule on parallel workers and print the makespan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)

			plan, err := input.Load(args[0])
			if err != nil {
				return err
			}
			ctrl, err := openController(cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			report, err := ctrl.Makespan(plan.Edges, plan.Tasks, ctrl.DefaultOptions())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printSchedule(cmd.OutOrStdout(), report, timeline)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVarP(&timeline, "timeline", "t", false, "print the per-task timeline")
	return cmd
}

func buildRunCommand() *cobra.Command {
	var flags scheduleFlags
	var tick time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Replay the simulated schedule on a worker pool",
		Long:  "Simulate the schedule, then run every task on real goroutines, sleeping one tick per unit of duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if cmd.Flags().Changed("tick") {
				cfg.Execution.Tick = tick
			}

			plan, err := input.Load(args[0])
			if err != nil {
				return err
			}
			ctrl, err := openController(cfg)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, results, err := ctrl.Execute(ctx, plan.Edges, plan.Tasks, ctrl.DefaultOptions(), nil)
			out := cmd.OutOrStdout()
			if err != nil {
				// Show what ran before the failure.
				printResults(out, nil, results)
				return err
			}
			if asJSON {
				return writeJSON(out, map[string]any{"report": report, "results": results})
			}
			printSchedule(out, report, true)
			printResults(out, report, results)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&tick, "tick", 0, "wall time of one duration unit (overrides execution.tick)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report and results as JSON")
	return cmd
}

// ============================================================================
// serve
// ============================================================================

func buildServeCommand() *cobra.Command {
	var grpcAddr, httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC and HTTP scheduling services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("grpc-addr") {
				cfg.Server.GRPCAddr = grpcAddr
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.Server.HTTPAddr = httpAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides server.grpc_addr)")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides server.http_addr)")
	return cmd
}

// serve runs the services until ctx is cancelled or one of them fails.
// An empty address disables that service.
func serve(ctx context.Context, cfg *Config) error {
	collector := metrics.NewCollector()
	ctrl, err := controller.NewController(cfg.controllerConfig(), collector)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	defer ctrl.Close()

	errCh := make(chan error, 3)

	grpcServer := server.NewGRPCServer(ctrl)
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCAddr, err)
		}
		go func() { errCh <- server.Serve(grpcServer, lis) }()
	}

	var httpServer *httpapi.Server
	if cfg.Server.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		httpServer = httpapi.NewServer(cfg.Server.HTTPAddr, httpapi.NewRouter(ctrl, collector.Handler(), Version))
		go func() { errCh <- httpServer.Start() }()
	}

	if cfg.Metrics.Enabled {
		go func() {
			slog.Info("Starting metrics server", "port", cfg.Metrics.Port)
			errCh <- collector.StartServer(cfg.Metrics.Port)
		}()
	}

	slog.Info("stepflow started", "grpc", cfg.Server.GRPCAddr, "http", cfg.Server.HTTPAddr)

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal, stopping gracefully")
	case serveErr = <-errCh:
		slog.Error("Server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			serveErr = errors.Join(serveErr, fmt.Errorf("HTTP shutdown: %w", err))
		}
	}
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	slog.Info("stepflow stopped")
	return serveErr
}

// ============================================================================
// journal / report / status
// ============================================================================

func buildJournalCommand() *cobra.Command {
	var runID string
	var listRuns, stats, validate bool

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the run journal",
		Long:  "Dump the journal, list its runs, rebuild one run's timeline, or verify its checksums",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			path := cfg.Journal.Path
			if path == "" {
				return errors.New("journal is disabled (journal.path is empty)")
			}
			out := cmd.OutOrStdout()

			switch {
			case validate:
				if err := wal.ValidateWAL(path); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", green("✓"), "journal is valid")
				return nil
			case stats:
				s, err := wal.GetWALStats(path)
				if err != nil {
					return err
				}
				printStats(out, path, s)
				return nil
			case listRuns:
				ids, err := wal.RunIDs(path)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			case runID != "":
				rows, err := wal.RunTimeline(path, runID)
				if err != nil {
					return err
				}
				makespan := 0
				for _, r := range rows {
					makespan = max(makespan, r.Finish)
				}
				fmt.Fprintf(out, "%s %s\n", bold("Run:"), boldCyan(runID))
				printTimeline(out, rows, makespan)
				return nil
			default:
				return wal.DumpWAL(path, out)
			}
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "rebuild the timeline of this run")
	cmd.Flags().BoolVar(&listRuns, "runs", false, "list run IDs in journal order")
	cmd.Flags().BoolVar(&stats, "stats", false, "print journal statistics")
	cmd.Flags().BoolVar(&validate, "validate", false, "verify every checksum")
	cmd.MarkFlagsMutuallyExclusive("run", "runs", "stats", "validate")
	return cmd
}

func buildReportCommand() *cobra.Command {
	var asJSON, backups bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the last persisted report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cfg.Report.Path == "" {
				return errors.New("reports are disabled (report.path is empty)")
			}
			mgr := snapshot.NewManager(cfg.Report.Path)
			out := cmd.OutOrStdout()

			if backups {
				files, err := mgr.Backups()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(out, f)
				}
				return nil
			}

			report, err := mgr.Load()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, report)
			}
			printReport(out, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&backups, "backups", false, "list previous reports instead")
	return cmd
}

func buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and stored state status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			showStatus(cmd, cfg)
			return nil
		},
	}
}

func showStatus(cmd *cobra.Command, cfg *Config) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, boldCyan("stepflow status"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, bold("Configuration:"))
	fmt.Fprintf(out, "  ├─ Config File:  %s\n", configFile)
	fmt.Fprintf(out, "  ├─ Workers:      %d\n", cfg.Scheduler.Workers)
	fmt.Fprintf(out, "  ├─ Policy:       %s (base %d)\n", cfg.Scheduler.Policy, cfg.Scheduler.Base)
	fmt.Fprintf(out, "  └─ Tick:         %s\n", cfg.Execution.Tick)
	fmt.Fprintln(out)

	fmt.Fprintln(out, bold("Storage:"))
	switch {
	case cfg.Journal.Path == "":
		fmt.Fprintf(out, "  ├─ Journal:      %s\n", yellow("disabled"))
	default:
		if n, err := wal.CountEvents(cfg.Journal.Path); err == nil {
			fmt.Fprintf(out, "  ├─ Journal:      %s (%d events)\n", cfg.Journal.Path, n)
		} else {
			fmt.Fprintf(out, "  ├─ Journal:      %s %s\n", cfg.Journal.Path, dim("(empty)"))
		}
	}
	switch {
	case cfg.Report.Path == "":
		fmt.Fprintf(out, "  └─ Report:       %s\n", yellow("disabled"))
	default:
		if report, err := snapshot.NewManager(cfg.Report.Path).Load(); err == nil {
			fmt.Fprintf(out, "  └─ Report:       %s (%s run %s)\n", cfg.Report.Path, report.Mode, report.RunID)
		} else {
			fmt.Fprintf(out, "  └─ Report:       %s %s\n", cfg.Report.Path, dim("(none)"))
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, bold("Metrics:"))
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "  └─ Status: %s on http://localhost:%d/metrics\n", green("enabled"), cfg.Metrics.Port)
	} else {
		fmt.Fprintf(out, "  └─ Status: %s\n", yellow("disabled"))
	}
}
