package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-guardian/internal/cli"
	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/pkg/guardianapi"
)

const timeLayout = time.RFC3339

func newRegisterCmd(v *viper.Viper) *cobra.Command {
	var threshold int

	cmd := &cobra.Command{
		Use:   "register <guardian>...",
		Short: "Register guardians for your account",
		Long: "Register the guardian set and approval threshold for the signing key's account.\n" +
			"Guardians may be given as public keys or keyring aliases. Registration is one-time.",
		Args: cobra.MinimumNArgs(guardian.MinGuardians),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, v, false, func(ctx context.Context, env *cli.Env) error {
				guardians := make([]string, len(args))
				for i, arg := range args {
					account, err := resolveAccount(ctx, env.Keyring, arg)
					if err != nil {
						return err
					}
					guardians[i] = account
				}

				registeredAt, err := env.Client.Register(ctx, guardians, threshold)
				if err != nil {
					return err
				}
				return env.Out.Result("register", "Guardians registered").
					With("Account", env.Client.Account().String()).
					With("Guardians", len(guardians)).
					With("Threshold", threshold).
					With("Registered At", formatTime(registeredAt)).
					Render()
			})
		},
	}
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 0, "approvals required to recover (1..number of guardians)")
	_ = cmd.MarkFlagRequired("threshold")
	return cmd
}

func newInitiateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "initiate <account> <proposed-key>",
		Short: "Start recovery of an account onto a new key",
		Long: "Open a recovery session proposing a new key for account. Either argument may be\n" +
			"a public key or a keyring alias. Works without a signing key.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, v, true, func(ctx context.Context, env *cli.Env) error {
				account, err := resolveAccount(ctx, env.Keyring, args[0])
				if err != nil {
					return err
				}
				proposed, err := resolveKey(ctx, env.Keyring, args[1])
				if err != nil {
					return err
				}

				id, err := env.Client.Initiate(ctx, account, proposed)
				if err != nil {
					return err
				}
				return env.Out.Result("initiate", "Recovery initiated").
					With("Session ID", id.String()).
					With("Account", account).
					With("Proposed Key", guardian.AccountFromPublicKey(proposed).String()).
					Render()
			})
		},
	}
}

func newApproveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <session-id>",
		Short: "Approve a recovery session as a guardian",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := guardian.ParseSessionID(args[0])
			if err != nil {
				return err
			}
			return runClient(cmd, v, false, func(ctx context.Context, env *cli.Env) error {
				s, err := env.Client.Approve(ctx, id)
				if err != nil {
					return err
				}
				return env.Out.Result("approve", "Approval recorded").
					With("Session ID", s.ID).
					With("Approvals", fmt.Sprintf("%d/%d", s.ApprovalCount, s.Threshold)).
					With("Approved", s.Approved).
					Render()
			})
		},
	}
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show a recovery session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := guardian.ParseSessionID(args[0])
			if err != nil {
				return err
			}
			return runClient(cmd, v, true, func(ctx context.Context, env *cli.Env) error {
				s, err := env.Client.Session(ctx, id)
				if err != nil {
					return err
				}
				return renderSession(env.Out, "session", s)
			})
		},
	}
}

func newFinalizeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <session-id>",
		Short: "Close an approved recovery session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := guardian.ParseSessionID(args[0])
			if err != nil {
				return err
			}
			return runClient(cmd, v, true, func(ctx context.Context, env *cli.Env) error {
				s, err := env.Client.Finalize(ctx, id)
				if err != nil {
					return err
				}
				return env.Out.Result("finalize", "Recovery finalized").
					With("Session ID", s.ID).
					With("Account", s.Account).
					With("New Key", s.ProposedKey).
					With("Finalized At", formatTime(s.FinalizedAt)).
					Render()
			})
		},
	}
}

func newGuardiansCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "guardians [account]",
		Short: "List an account's guardians",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, v, true, func(ctx context.Context, env *cli.Env) error {
				account, err := accountArg(ctx, env, args)
				if err != nil {
					return err
				}
				guardians, err := env.Client.Guardians(ctx, account)
				if err != nil {
					return err
				}
				return env.Out.StringList("guardians").Add(guardians...).Render()
			})
		},
	}
}

func newThresholdCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "threshold [account]",
		Short: "Show an account's approval threshold",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, v, true, func(ctx context.Context, env *cli.Env) error {
				account, err := accountArg(ctx, env, args)
				if err != nil {
					return err
				}
				has, err := env.Client.HasGuardians(ctx, account)
				if err != nil {
					return err
				}
				kv := env.Out.KV("threshold").Set("Account", account).Set("Has Guardians", has)
				if has {
					threshold, err := env.Client.Threshold(ctx, account)
					if err != nil {
						return err
					}
					kv.Set("Threshold", threshold)
				}
				return kv.Render()
			})
		},
	}
}

func newActiveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "active [account]",
		Short: "Show an account's open recovery session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, v, true, func(ctx context.Context, env *cli.Env) error {
				account, err := accountArg(ctx, env, args)
				if err != nil {
					return err
				}
				id, ok, err := env.Client.ActiveSession(ctx, account)
				if err != nil {
					return err
				}
				kv := env.Out.KV("active-session").Set("Account", account).Set("Active", ok)
				if ok {
					kv.Set("Session ID", id.String())
				}
				return kv.Render()
			})
		},
	}
}

func newPingCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClient(cmd, v, true, func(ctx context.Context, env *cli.Env) error {
				start := time.Now()
				if err := env.Client.Ping(ctx); err != nil {
					return err
				}
				return env.Out.Result("ping", "Server is serving").
					With("Address", env.Config.Addr).
					With("Latency", time.Since(start).Round(time.Microsecond).String()).
					Render()
			})
		},
	}
}

// accountArg resolves an optional account argument, falling back to the
// signing key's account.
func accountArg(ctx context.Context, env *cli.Env, args []string) (string, error) {
	if len(args) > 0 {
		return resolveAccount(ctx, env.Keyring, args[0])
	}
	if account := env.Client.Account(); account != "" {
		return account.String(), nil
	}
	return "", errors.New("account required: pass an account or configure a signing key")
}

func renderSession(out *cli.Output, resultType string, s guardianapi.Session) error {
	kv := out.KV(resultType).
		Title("Recovery session "+s.ID).
		Set("Session ID", s.ID).
		Set("Account", s.Account).
		Set("Proposed Key", s.ProposedKey)
	if s.Initiator != "" {
		kv.Set("Initiator", s.Initiator)
	}
	kv.Set("Approvals", fmt.Sprintf("%d/%d", s.ApprovalCount, s.Threshold)).
		Set("Approved", s.Approved).
		Set("Finalized", s.Finalized).
		Set("Created At", formatTime(s.CreatedAt))
	if !s.ApprovedAt.IsZero() {
		kv.Set("Approved At", formatTime(s.ApprovedAt))
	}
	if !s.FinalizedAt.IsZero() {
		kv.Set("Finalized At", formatTime(s.FinalizedAt))
	}
	return kv.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}
