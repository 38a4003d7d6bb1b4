package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/internal/keyring"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

func testViper(t *testing.T) (*viper.Viper, string) {
	t.Helper()
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	v := viper.New()
	v.Set("data_dir", dir)
	v.Set("addr", "passthrough:///unused")
	return v, dir
}

func generateDefault(t *testing.T, dir string, algo identity.Algorithm) *keyring.Key {
	t.Helper()
	kr := keyring.New(dir)
	key, err := kr.Generate(context.Background(), algo, keyring.DefaultAlias)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := kr.SetDefault(keyring.DefaultAlias); err != nil {
		t.Fatal(err)
	}
	return key
}

func TestRunCommandUsesDefaultKey(t *testing.T) {
	v, dir := testViper(t)
	key := generateDefault(t, dir, identity.AlgSecp256k1)

	var got guardian.Account
	err := RunCommand(context.Background(), CommandConfig{
		Name:   "whoami",
		Viper:  v,
		Stdout: &bytes.Buffer{},
		Run: func(_ context.Context, env *Env) error {
			got = env.Client.Account()
			if env.Out == nil || env.Keyring == nil {
				return errors.New("env not populated")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if want := guardian.AccountFromPublicKey(key.Keypair.PublicKey()); got != want {
		t.Errorf("account = %q, want %q", got, want)
	}

	if _, err := os.Stat(filepath.Join(dir, "log", "cli.log")); err != nil {
		t.Errorf("client log file not created: %v", err)
	}
}

func TestRunCommandNamedKey(t *testing.T) {
	v, dir := testViper(t)
	generateDefault(t, dir, identity.AlgEd25519)
	other, err := keyring.New(dir).Generate(context.Background(), identity.AlgEd25519, "other")
	if err != nil {
		t.Fatal(err)
	}
	v.Set("key", "other")

	var got guardian.Account
	err = RunCommand(context.Background(), CommandConfig{
		Name:   "approve",
		Viper:  v,
		Stdout: &bytes.Buffer{},
		Run: func(_ context.Context, env *Env) error {
			got = env.Client.Account()
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != guardian.AccountFromPublicKey(other.Keypair.PublicKey()) {
		t.Errorf("account = %q, want the named key", got)
	}
}

func TestRunCommandKeyRequirements(t *testing.T) {
	noop := func(context.Context, *Env) error { return nil }

	t.Run("signed command without key", func(t *testing.T) {
		v, _ := testViper(t)
		err := RunCommand(context.Background(), CommandConfig{Name: "register", Viper: v, Run: noop})
		if !errors.Is(err, ErrNoKey) {
			t.Fatalf("err = %v, want ErrNoKey", err)
		}
	})

	t.Run("anonymous command without key", func(t *testing.T) {
		v, _ := testViper(t)
		var account guardian.Account = "unset"
		err := RunCommand(context.Background(), CommandConfig{
			Name:      "status",
			Viper:     v,
			Anonymous: true,
			Stdout:    &bytes.Buffer{},
			Run: func(_ context.Context, env *Env) error {
				account = env.Client.Account()
				return nil
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if account != "" {
			t.Errorf("account = %q, want anonymous", account)
		}
	})

	t.Run("anonymous command with missing named key", func(t *testing.T) {
		v, _ := testViper(t)
		v.Set("key", "ghost")
		err := RunCommand(context.Background(), CommandConfig{Name: "status", Viper: v, Anonymous: true, Run: noop})
		if !errors.Is(err, keyring.ErrAliasNotFound) {
			t.Fatalf("err = %v, want ErrAliasNotFound", err)
		}
	})
}

func TestRunCommandTimeout(t *testing.T) {
	v, _ := testViper(t)
	var deadline time.Time
	var ok bool
	err := RunCommand(context.Background(), CommandConfig{
		Name:      "status",
		Viper:     v,
		Anonymous: true,
		Timeout:   time.Minute,
		Stdout:    &bytes.Buffer{},
		Run: func(ctx context.Context, _ *Env) error {
			deadline, ok = ctx.Deadline()
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ok || time.Until(deadline) > time.Minute {
		t.Errorf("deadline = %v, %v", deadline, ok)
	}
}

func TestRunCommandRendersErrors(t *testing.T) {
	v, _ := testViper(t)
	v.Set("output", "json")

	var buf bytes.Buffer
	cause := guardian.FromCode(guardian.CodeNotGuardian, "caller is not a guardian of the account", map[string]string{"session": "4"})
	err := RunCommand(context.Background(), CommandConfig{
		Name:      "approve",
		Viper:     v,
		Anonymous: true,
		Stdout:    &buf,
		Run:       func(context.Context, *Env) error { return cause },
	})

	var reported *ReportedError
	if !errors.As(err, &reported) {
		t.Fatalf("err = %T %v, want *ReportedError", err, err)
	}
	if !errors.Is(err, guardian.ErrNotGuardian) {
		t.Errorf("reported error lost its code: %v", err)
	}

	var env struct {
		Meta Meta           `json:"meta"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("output is not json: %v: %s", err, buf.String())
	}
	if env.Meta.Type != "approve-error" || env.Data["code"] != "NOT_GUARDIAN" || env.Data["session"] != "4" {
		t.Errorf("rendered = %+v", env)
	}
	if !strings.Contains(env.Data["error"].(string), "not a guardian") {
		t.Errorf("error text = %v", env.Data["error"])
	}
}

func TestRunCommandValidation(t *testing.T) {
	noop := func(context.Context, *Env) error { return nil }
	tests := []struct {
		name string
		cfg  CommandConfig
	}{
		{"missing name", CommandConfig{Viper: viper.New(), Run: noop}},
		{"missing viper", CommandConfig{Name: "x", Run: noop}},
		{"missing run", CommandConfig{Name: "x", Viper: viper.New()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RunCommand(context.Background(), tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
