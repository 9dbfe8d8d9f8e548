//go:build linux

// Package config holds treeusage settings: defaults, an optional YAML file
// and validation. Command-line flags are applied on top by cmd/treeusage.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ja7ad/treeusage/pkg/monitor"
	"github.com/ja7ad/treeusage/pkg/system/proc"
	"github.com/ja7ad/treeusage/pkg/usage"
)

// Config holds all treeusage options. Durations are Go duration strings in
// YAML ("500ms", "2s").
type Config struct {
	// Monitoring
	Interval     time.Duration `yaml:"interval"`
	HistorySize  int           `yaml:"history_size"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	Workers      int           `yaml:"workers"`

	// Aggregation
	Strategy      string `yaml:"strategy"`
	SyscallNumber uint   `yaml:"syscall_number"`
	ProcRoot      string `yaml:"proc_root"`

	// Outputs
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Default configuration values.
const (
	DefaultProcRoot = "/proc"
	DefaultLogLevel = "info"
)

// Default returns a Config with every field set to its default.
func Default() *Config {
	return &Config{
		Interval:      monitor.DefaultInterval,
		HistorySize:   monitor.DefaultHistorySize,
		QueryTimeout:  monitor.DefaultQueryTimeout,
		Workers:       monitor.DefaultWorkers,
		Strategy:      string(usage.Auto),
		SyscallNumber: uint(usage.DefaultSyscallNumber),
		ProcRoot:      DefaultProcRoot,
		LogLevel:      DefaultLogLevel,
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.decode(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Interval < monitor.MinInterval {
		return fmt.Errorf("interval must be at least %v, got %v", monitor.MinInterval, c.Interval)
	}
	if c.HistorySize < 1 || c.HistorySize > monitor.MaxHistorySize {
		return fmt.Errorf("history size must be between 1 and %d, got %d", monitor.MaxHistorySize, c.HistorySize)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %v", c.QueryTimeout)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if _, err := usage.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if c.SyscallNumber == 0 {
		return errors.New("syscall number must be non-zero")
	}
	if c.ProcRoot == "" {
		return errors.New("proc root must not be empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.LogLevel)
	}
	return lvl, nil
}

// AggregatorOptions maps the aggregation settings onto usage.Options.
func (c *Config) AggregatorOptions(log *slog.Logger) (usage.Options, error) {
	strategy, err := usage.ParseStrategy(c.Strategy)
	if err != nil {
		return usage.Options{}, err
	}
	opts := usage.Options{
		Strategy:      strategy,
		SyscallNumber: uintptr(c.SyscallNumber),
		Logger:        log,
	}
	if c.ProcRoot != DefaultProcRoot {
		fs := proc.NewFS(c.ProcRoot)
		opts.FS = &fs
	}
	return opts, nil
}

// MonitorOptions maps the monitoring settings onto monitor.Options.
func (c *Config) MonitorOptions(agg usage.Aggregator, log *slog.Logger) monitor.Options {
	return monitor.Options{
		Aggregator:   agg,
		HistorySize:  c.HistorySize,
		QueryTimeout: c.QueryTimeout,
		Workers:      c.Workers,
		Logger:       log,
	}
}
