//go:build linux

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ja7ad/treeusage/pkg/system/util"
	"github.com/ja7ad/treeusage/pkg/usage"
)

func newSnapshotCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "snapshot PID|PID..PID...",
		Short: "Measure each process tree once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, g, args, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print a JSON array instead of a table")
	return cmd
}

func runSnapshot(cmd *cobra.Command, g *globals, args []string, asJSON bool) error {
	pids, err := util.ParsePIDs(args)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return fmt.Errorf("no PIDs provided")
	}
	cfg, err := g.load(cmd)
	if err != nil {
		return err
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

	var (
		snaps  []usage.Snapshot
		failed int
	)
	for _, pid := range pids {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.QueryTimeout)
		s, err := agg.Aggregate(ctx, pid)
		cancel()
		if err != nil {
			failed++
			log.Error("snapshot failed", "pid", pid, "err", err)
			continue
		}
		snaps = append(snaps, s)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if snaps == nil {
			snaps = []usage.Snapshot{}
		}
		if err := enc.Encode(snaps); err != nil {
			return err
		}
	} else if len(snaps) > 0 {
		p := newPrinter(os.Stdout)
		p.header()
		for _, s := range snaps {
			p.row(s, -1)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d snapshots failed", failed, len(pids))
	}
	return nil
}
