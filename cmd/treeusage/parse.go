//go:build linux

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ja7ad/treeusage/pkg/intent"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse TEXT...",
		Short: "Show how a dashboard command would be understood",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := intent.Parse(strings.Join(args, " "))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "intent:   %s\n", in.Kind)
			switch in.Kind {
			case intent.Monitor:
				fmt.Fprintf(out, "pids:     %v\n", in.PIDs)
				fmt.Fprintf(out, "interval: %s\n", in.Interval)
			case intent.Unknown:
				fmt.Fprintf(out, "message:  %s\n", in.Message)
			}
			return nil
		},
	}
}
