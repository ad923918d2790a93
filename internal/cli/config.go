package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/stepflow/internal/controller"
	"github.com/ChuLiYu/stepflow/internal/scheduler"
)

const defaultConfigPath = "configs/default.yaml"

// Config represents the complete configuration file.
// Fields absent from the file keep the values from defaultConfig.
type Config struct {
	Scheduler struct {
		Workers int    `yaml:"workers"`
		Policy  string `yaml:"policy"` // letter, rank or unit
		Base    int    `yaml:"base"`
	} `yaml:"scheduler"`

	Execution struct {
		Tick        time.Duration `yaml:"tick"`
		TaskTimeout time.Duration `yaml:"task_timeout"`
	} `yaml:"execution"`

	Journal struct {
		Path       string `yaml:"path"` // empty disables the journal
		BufferSize int    `yaml:"buffer_size"`
		Sync       bool   `yaml:"sync"`
	} `yaml:"journal"`

	Report struct {
		Path    string `yaml:"path"` // empty disables reports
		Backups int    `yaml:"backups"`
	} `yaml:"report"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	Server struct {
		GRPCAddr        string        `yaml:"grpc_addr"`
		HTTPAddr        string        `yaml:"http_addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Scheduler.Workers = 2
	cfg.Scheduler.Policy = scheduler.PolicyLetter
	cfg.Execution.Tick = 100 * time.Millisecond
	cfg.Journal.Path = "data/journal.wal"
	cfg.Journal.BufferSize = 64
	cfg.Report.Path = "data/report.json"
	cfg.Report.Backups = 3
	cfg.Metrics.Port = 9090
	cfg.Server.GRPCAddr = ":50051"
	cfg.Server.HTTPAddr = ":8080"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Log.Level = "info"
	return cfg
}

// loadConfig reads path over the defaults. A missing file is only an error
// when the user named it; the default path falls back to built-in values.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// controllerConfig maps the file layout onto controller.Config.
func (c *Config) controllerConfig() controller.Config {
	return controller.Config{
		Workers:        c.Scheduler.Workers,
		DurationPolicy: c.Scheduler.Policy,
		DurationBase:   c.Scheduler.Base,
		Tick:           c.Execution.Tick,
		TaskTimeout:    c.Execution.TaskTimeout,
		WALPath:        c.Journal.Path,
		WALBufferSize:  c.Journal.BufferSize,
		WALSync:        c.Journal.Sync,
		ReportPath:     c.Report.Path,
		ReportBackups:  c.Report.Backups,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
