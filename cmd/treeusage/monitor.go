//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ja7ad/treeusage/pkg/config"
	"github.com/ja7ad/treeusage/pkg/export"
	"github.com/ja7ad/treeusage/pkg/metrics"
	"github.com/ja7ad/treeusage/pkg/monitor"
	"github.com/ja7ad/treeusage/pkg/system/util"
	"github.com/ja7ad/treeusage/pkg/types"
	"github.com/ja7ad/treeusage/pkg/usage"
)

type monitorOpts struct {
	interval    time.Duration
	samples     int
	ema         float64
	csvPath     string
	jsonlPath   string
	htmlPath    string
	metricsAddr string
}

func newMonitorCmd(g *globals) *cobra.Command {
	var o monitorOpts
	cmd := &cobra.Command{
		Use:   "monitor PID|PID..PID...",
		Short: "Poll process trees on an interval until they exit or Ctrl-C",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, g, o, args)
		},
	}
	cmd.Flags().DurationVarP(&o.interval, "interval", "i", monitor.DefaultInterval, "polling interval (e.g. 1s, 500ms)")
	cmd.Flags().IntVarP(&o.samples, "samples", "s", 0, "number of cycles to run (0 = until all trees exit or Ctrl-C)")
	cmd.Flags().Float64Var(&o.ema, "ema", 0.5, "EMA alpha for CPU utilisation smoothing (0..1]")
	cmd.Flags().StringVar(&o.csvPath, "csv", "", "write every snapshot to a CSV file")
	cmd.Flags().StringVar(&o.jsonlPath, "jsonl", "", "write every snapshot to a JSON Lines file")
	cmd.Flags().StringVar(&o.htmlPath, "html", "", "write an HTML report when monitoring ends")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func runMonitor(cmd *cobra.Command, g *globals, o monitorOpts, args []string) error {
	pids, err := util.ParsePIDs(args)
	if err != nil {
		return err
	}
	if o.samples < 0 {
		return fmt.Errorf("samples must be >= 0")
	}
	if o.ema <= 0 || o.ema > 1 {
		return fmt.Errorf("ema must be in (0,1]")
	}

	cfg, err := g.load(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		cfg.Interval = o.interval
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	agg, err := newAggregator(cfg, log)
	if err != nil {
		return err
	}

	mon := monitor.New(cfg.MonitorOptions(agg, log))
	if err := mon.Start(pids, cfg.Interval); err != nil {
		if errors.Is(err, monitor.ErrNoPIDs) {
			return fmt.Errorf("no PIDs provided")
		}
		return err
	}

	sinks, report, err := openSinks(o)
	if err != nil {
		mon.Stop()
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var exporter *metrics.Exporter
	grp, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		exporter = metrics.New()
		grp.Go(func() error { return exporter.Serve(gctx, cfg.MetricsAddr, log) })
	}

	banner(cmd.Context(), agg)
	p := newPrinter(os.Stdout)
	p.header()

	last := map[int]usage.Snapshot{}
	var cycles int
	emit := func(d monitor.Delta) {
		cycles++
		for _, s := range d.Snapshots {
			last[s.PID] = s
			p.row(s, latestRate(mon.History(s.PID), o.ema))
			if err := sinks.Write(s); err != nil {
				log.Warn("export failed", "pid", s.PID, "err", err)
			}
		}
		for _, ev := range d.Evicted {
			p.note("stopped watching PID %d: %v", ev.PID, ev.Err)
			if report != nil {
				report.Evicted(ev.PID, ev.Err)
			}
		}
		if exporter != nil {
			exporter.Observe(d)
		}
		if d.Stopped {
			p.note("all watched trees exited")
		}
		if o.samples > 0 && cycles >= o.samples {
			stopMonitoring(mon, exporter)
		}
	}

	grp.Go(func() error {
		defer cancel()
		err := mon.Run(gctx, emit)
		if errors.Is(err, context.Canceled) {
			slog.Info("interrupted")
			return nil
		}
		return err
	})
	runErr := grp.Wait()
	stopMonitoring(mon, exporter)

	if err := sinks.Close(); err != nil {
		log.Error("close outputs", "err", err)
	}
	summary(p, last, cycles, cfg)
	return runErr
}

// stopMonitoring ends the session and drops the per-tree series. An explicit
// Stop yields no Delta, so the exporter would otherwise keep the last values.
func stopMonitoring(mon *monitor.Monitor, exporter *metrics.Exporter) {
	mon.Stop()
	if exporter != nil {
		exporter.Reset()
	}
}

func openSinks(o monitorOpts) (export.Multi, *export.HTMLReport, error) {
	var (
		sinks  export.Multi
		report *export.HTMLReport
	)
	if o.csvPath != "" {
		w, err := export.CreateCSV(o.csvPath)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, w)
	}
	if o.jsonlPath != "" {
		w, err := export.CreateJSONL(o.jsonlPath)
		if err != nil {
			_ = sinks.Close()
			return nil, nil, err
		}
		sinks = append(sinks, w)
	}
	if o.htmlPath != "" {
		r, err := export.CreateHTML(o.htmlPath)
		if err != nil {
			_ = sinks.Close()
			return nil, nil, err
		}
		report = r
		sinks = append(sinks, r)
	}
	return sinks, report, nil
}

// latestRate returns the smoothed CPU utilisation of a history, or -1.
func latestRate(history []usage.Snapshot, alpha float64) float64 {
	rates := monitor.Rates(history, alpha)
	if len(rates) == 0 {
		return -1
	}
	return rates[len(rates)-1].CPU
}

func banner(ctx context.Context, agg usage.Aggregator) {
	host, kernel, cpus, mem := util.SystemSummary(ctx)
	fmt.Printf(_console, host, kernel, cpus, mem, usage.StrategyOf(agg), time.Now().Format("2006-01-02 15:04:05"))
}

func summary(p *printer, last map[int]usage.Snapshot, cycles int, cfg *config.Config) {
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "treeusage summary (%d cycles of ~%s):\n", cycles, cfg.Interval)
	for _, pid := range slices.Sorted(maps.Keys(last)) {
		s := last[pid]
		fmt.Fprintf(p.out, "- %d %s: cpu %.3fs (user %.3fs, sys %.3fs), peak rss %s, faults %d minor / %d major\n",
			pid, s.Name, s.CPUTime(), s.UserTime, s.SysTime,
			types.FromKiB(s.MaxRSSKB).Humanized(), s.MinorFaults, s.MajorFaults)
	}
	fmt.Fprintln(p.out)
}
