package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-guardian/internal/cli"
	"github.com/gezibash/arc-guardian/internal/config"
)

func newWhoamiCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the account of the active signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(v)
			if err != nil {
				return err
			}
			return showKey(cmd.Context(), cli.Keyring(cfg), newOutput(cmd, cfg), "whoami", cfg.Key)
		},
	}
}
