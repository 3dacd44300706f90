package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// set at build time via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "mtsfv %s (commit %s, %s)\n", version, commit, runtime.Version())
			return err
		},
	}
}
