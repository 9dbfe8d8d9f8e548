//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ja7ad/treeusage/pkg/config"
	"github.com/ja7ad/treeusage/pkg/usage"
)

type globals struct {
	configPath string
	logLevel   string
	strategy   string
	procRoot   string
}

func main() {
	var g globals

	root := &cobra.Command{
		Use:   "treeusage",
		Short: "Aggregated CPU time, peak memory and page faults of process trees",
		Long: `The treeusage tool measures whole process trees on Linux: a root PID and
every process transitively forked from it. It reports user and system CPU
time, the largest peak resident set size of any member and page faults,
including the work of children that already exited and were reaped.

On kernels carrying the subtree rusage syscall the numbers come from a
single call; everywhere else the tree is walked through /proc.

Examples:
  treeusage snapshot $(pidof postgres)
  treeusage monitor -i 500ms --csv out.csv 1234 30000..30010
  treeusage dashboard`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.strategy, "strategy", string(usage.Auto), "aggregation strategy (auto, syscall, procfs)")
	root.PersistentFlags().StringVar(&g.procRoot, "proc-root", config.DefaultProcRoot, "procfs mount point")

	root.AddCommand(
		newSnapshotCmd(&g),
		newMonitorCmd(&g),
		newListCmd(),
		newDashboardCmd(&g),
		newParseCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// load reads the config file and applies the flags the user set explicitly.
func (g *globals) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("strategy") {
		cfg.Strategy = g.strategy
	}
	if flags.Changed("proc-root") {
		cfg.ProcRoot = g.procRoot
	}
	return cfg, nil
}

// newLogger builds the text logger used by every command and installs it as
// the slog default.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(log)
	return log, nil
}

func newAggregator(cfg *config.Config, log *slog.Logger) (usage.Aggregator, error) {
	opts, err := cfg.AggregatorOptions(log)
	if err != nil {
		return nil, err
	}
	agg, err := usage.New(opts)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}
	return agg, nil
}
