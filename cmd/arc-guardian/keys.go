package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-guardian/internal/cli"
	"github.com/gezibash/arc-guardian/internal/config"
	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/internal/keyring"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

func newKeysCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage signing keys",
		Long: "Manage ed25519 and secp256k1 signing keys with alias support.\n" +
			"Keys are stored in <data-dir>/keys/ with a keyring.json alias map.",
	}
	cmd.AddCommand(
		newKeysGenerateCmd(v),
		newKeysImportCmd(v),
		newKeysListCmd(v),
		newKeysShowCmd(v),
		newKeysDefaultCmd(v),
		newKeysDeleteCmd(v),
	)
	return cmd
}

// keysEnv loads client config for commands that only touch the keyring.
func keysEnv(cmd *cobra.Command, v *viper.Viper) (*keyring.Keyring, *cli.Output, error) {
	cfg, err := config.LoadClient(v)
	if err != nil {
		return nil, nil, err
	}
	return cli.Keyring(cfg), newOutput(cmd, cfg), nil
}

func newKeysGenerateCmd(v *viper.Viper) *cobra.Command {
	var (
		algo        string
		makeDefault bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "generate [alias]",
		Short: "Generate a new key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias := keyring.DefaultAlias
			if len(args) > 0 {
				alias = args[0]
			}

			ctx := cmd.Context()
			kr, out, err := keysEnv(cmd, v)
			if err != nil {
				return err
			}
			if !force {
				if _, err := kr.Load(ctx, alias); err == nil {
					return fmt.Errorf("key with alias %q already exists (use --force to replace the alias)", alias)
				}
			}

			key, err := kr.Generate(ctx, identity.Algorithm(algo), alias)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			if makeDefault || alias == keyring.DefaultAlias {
				if err := kr.SetDefault(alias); err != nil {
					return err
				}
			}

			return out.Result("key-generated", fmt.Sprintf("Key created: %s", alias)).
				With("Account", guardian.AccountFromPublicKey(key.Keypair.PublicKey()).String()).
				With("Algorithm", string(key.Metadata.Algorithm)).
				With("Default", makeDefault || alias == keyring.DefaultAlias).
				Render()
		},
	}

	cmd.Flags().StringVar(&algo, "algo", string(identity.AlgEd25519), "key algorithm (ed25519, secp256k1)")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "make this the default key")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "reassign an existing alias")
	return cmd
}

func newKeysImportCmd(v *viper.Viper) *cobra.Command {
	var algo string

	cmd := &cobra.Command{
		Use:   "import <alias> <seed-hex>",
		Short: "Import a key from its 32-byte seed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := hex.DecodeString(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("seed must be hex: %w", err)
			}
			kr, out, err := keysEnv(cmd, v)
			if err != nil {
				return err
			}
			key, err := kr.Import(cmd.Context(), identity.Algorithm(algo), seed, args[0])
			if err != nil {
				return fmt.Errorf("import key: %w", err)
			}
			return out.Result("key-imported", fmt.Sprintf("Key imported: %s", args[0])).
				With("Account", guardian.AccountFromPublicKey(key.Keypair.PublicKey()).String()).
				With("Algorithm", string(key.Metadata.Algorithm)).
				Render()
		},
	}
	cmd.Flags().StringVar(&algo, "algo", string(identity.AlgEd25519), "key algorithm (ed25519, secp256k1)")
	return cmd
}

func newKeysListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kr, out, err := keysEnv(cmd, v)
			if err != nil {
				return err
			}
			infos, err := kr.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}

			tbl := out.Table("key-list", "Aliases", "Algorithm", "Account", "Default")
			for _, info := range infos {
				aliases := strings.Join(info.Aliases, ", ")
				if aliases == "" {
					aliases = "-"
				}
				def := ""
				if info.IsDefault {
					def = "*"
				}
				tbl.AddRow(aliases, string(info.Algorithm), info.ID, def)
			}
			return tbl.Render()
		},
	}
}

func newKeysShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show [alias]",
		Short: "Show a key (default key when no alias is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kr, out, err := keysEnv(cmd, v)
			if err != nil {
				return err
			}
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return showKey(cmd.Context(), kr, out, "key", name)
		},
	}
}

func newKeysDefaultCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "default <alias>",
		Short: "Set the default key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kr, out, err := keysEnv(cmd, v)
			if err != nil {
				return err
			}
			if err := kr.SetDefault(args[0]); err != nil {
				return fmt.Errorf("set default: %w", err)
			}
			return out.Result("key-default", fmt.Sprintf("Default key: %s", args[0])).Render()
		},
	}
}

func newKeysDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <alias|key>",
		Short: "Delete a key and its aliases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kr, out, err := keysEnv(cmd, v)
			if err != nil {
				return err
			}
			if err := kr.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete key: %w", err)
			}
			return out.Result("key-deleted", fmt.Sprintf("Key deleted: %s", args[0])).Render()
		},
	}
}

// showKey renders one keyring entry. An empty name selects the default key.
func showKey(ctx context.Context, kr *keyring.Keyring, out *cli.Output, resultType, name string) error {
	key, err := kr.LoadOrDefault(ctx, name)
	if errors.Is(err, keyring.ErrNoDefault) {
		return cli.ErrNoKey
	}
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	infos, err := kr.List(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	var info keyring.KeyInfo
	for _, i := range infos {
		if i.ID == key.ID {
			info = *i
			break
		}
	}

	pk := key.Keypair.PublicKey()
	return out.KV(resultType).
		Set("Account", guardian.AccountFromPublicKey(pk).String()).
		Set("Algorithm", string(key.Metadata.Algorithm)).
		Set("Fingerprint", identity.Fingerprint(pk)).
		Set("Aliases", strings.Join(info.Aliases, ", ")).
		Set("Default", info.IsDefault).
		Set("Created", key.Metadata.CreatedAt.Format("2006-01-02 15:04:05 MST")).
		Render()
}

// resolveKey accepts an "algo:hex" public key, a bare ed25519 hex key or a
// keyring alias.
func resolveKey(ctx context.Context, kr *keyring.Keyring, s string) (identity.PublicKey, error) {
	if pk, ok := identity.TryDecodePublicKey(s); ok {
		return pk, nil
	}
	key, err := kr.Load(ctx, s)
	if err != nil {
		return identity.PublicKey{}, fmt.Errorf("%q is neither a public key nor a key alias: %w", s, err)
	}
	return key.Keypair.PublicKey(), nil
}

// resolveAccount is resolveKey in account form.
func resolveAccount(ctx context.Context, kr *keyring.Keyring, s string) (string, error) {
	pk, err := resolveKey(ctx, kr, s)
	if err != nil {
		return "", err
	}
	return guardian.AccountFromPublicKey(pk).String(), nil
}
