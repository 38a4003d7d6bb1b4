package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-guardian/internal/cli"
	"github.com/gezibash/arc-guardian/internal/config"
)

// rpcTimeout bounds every client command.
const rpcTimeout = 10 * time.Second

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		var reported *cli.ReportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "arc-guardian",
		Short:         "Guardian-based social recovery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.BindClientFlags(root, v)

	root.AddCommand(
		newStartCmd(v),
		newKeysCmd(v),
		newWhoamiCmd(v),
		newPingCmd(v),
		newRegisterCmd(v),
		newInitiateCmd(v),
		newApproveCmd(v),
		newStatusCmd(v),
		newFinalizeCmd(v),
		newGuardiansCmd(v),
		newThresholdCmd(v),
		newActiveCmd(v),
		newVersionCmd(),
	)
	return root
}

// stdout returns the command's writer, or nil when it is the process
// stdout so cli can detect a terminal.
func stdout(cmd *cobra.Command) io.Writer {
	if w := cmd.OutOrStdout(); w != os.Stdout {
		return w
	}
	return nil
}

func newOutput(cmd *cobra.Command, cfg config.ClientConfig) *cli.Output {
	format := cli.ParseFormat(cfg.Output)
	if w := stdout(cmd); w != nil {
		return cli.NewOutput(format, w)
	}
	return cli.NewStdout(format)
}

// runClient runs fn against the configured server. Anonymous commands work
// without a signing key.
func runClient(cmd *cobra.Command, v *viper.Viper, anonymous bool, fn func(context.Context, *cli.Env) error) error {
	return cli.RunCommand(cmd.Context(), cli.CommandConfig{
		Name:      cmd.Name(),
		Viper:     v,
		Timeout:   rpcTimeout,
		Anonymous: anonymous,
		Stdout:    stdout(cmd),
		Run:       fn,
	})
}
