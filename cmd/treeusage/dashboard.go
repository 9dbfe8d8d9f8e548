//go:build linux

package main

import (
	"errors"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ja7ad/treeusage/pkg/monitor"
	"github.com/ja7ad/treeusage/pkg/ui"
)

func newDashboardCmd(g *globals) *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive terminal dashboard driven by typed commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// The terminal belongs to the dashboard; logs go to a file or nowhere.
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			log, err := newLogger(cfg, w)
			if err != nil {
				return err
			}
			agg, err := newAggregator(cfg, log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			mon := monitor.New(cfg.MonitorOptions(agg, log))
			app := ui.New(ctx, ui.Options{Monitor: mon, Logger: log})

			_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			mon.Stop()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file")
	return cmd
}
