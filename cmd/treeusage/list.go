//go:build linux

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ja7ad/treeusage/pkg/pslist"
)

func newListCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your processes, like ps -u $USER",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				var err error
				if user, err = pslist.CurrentUser(); err != nil {
					return err
				}
			}
			entries, err := pslist.List(cmd.Context(), user)
			if err != nil {
				return err
			}
			return pslist.Write(os.Stdout, entries)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user name (default $USER)")
	return cmd
}
