package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "arc-guardian %s\n", version)
			fmt.Fprintf(w, "  commit:  %s\n", commit)
			fmt.Fprintf(w, "  built:   %s\n", buildDate)
			fmt.Fprintf(w, "  go:      %s\n", runtime.Version())
		},
	}
}
