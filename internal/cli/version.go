package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/version"
)

func newVersionCmd(a *app) *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if short {
				fmt.Fprintln(a.stdout, version.Version)
				return nil
			}
			fmt.Fprintf(a.stdout, "coder-audit %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildDate)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print the bare version string")
	return cmd
}
