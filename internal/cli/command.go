// Package cli holds the plumbing shared by arc-guardian client commands:
// config and key loading, the client connection and formatted output.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-guardian/internal/config"
	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/internal/keyring"
	"github.com/gezibash/arc-guardian/pkg/client"
	"github.com/gezibash/arc-guardian/pkg/logging"
)

// CommandConfig configures a client command.
type CommandConfig struct {
	// Name identifies the command in logs and error output.
	Name string

	Viper *viper.Viper

	// Timeout for the command operation. Zero means no timeout.
	Timeout time.Duration

	// Anonymous commands fall back to unsigned calls when no key is named
	// and the keyring has no default.
	Anonymous bool

	// Stdout overrides the output writer. Nil means os.Stdout.
	Stdout io.Writer

	// ClientOptions are appended to the options RunCommand builds.
	ClientOptions []client.Option

	Run func(ctx context.Context, env *Env) error
}

// Env is what a running command works with.
type Env struct {
	Config  config.ClientConfig
	Client  *client.Client
	Out     *Output
	Keyring *keyring.Keyring
}

// ReportedError is an error RunCommand already rendered to the output.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string { return e.Err.Error() }
func (e *ReportedError) Unwrap() error { return e.Err }

// RunCommand loads client config and the signing key, dials the server
// and runs cfg.Run. Failures from Run are rendered in the selected output
// format and returned as *ReportedError.
func RunCommand(ctx context.Context, cfg CommandConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("command name required")
	}
	if cfg.Viper == nil {
		return fmt.Errorf("viper required")
	}
	if cfg.Run == nil {
		return fmt.Errorf("run function required")
	}

	ccfg, err := config.LoadClient(cfg.Viper)
	if err != nil {
		return err
	}

	logger, closeLog := OpenLogger(ccfg)
	defer closeLog()
	logger = logger.With(slog.String("command", cfg.Name))

	signer, err := LoadSigner(ctx, ccfg)
	if err != nil && !(cfg.Anonymous && errors.Is(err, ErrNoKey)) {
		return err
	}

	opts := []client.Option{client.WithLogger(logger)}
	if signer != nil {
		opts = append(opts, client.WithIdentity(signer))
	}
	opts = append(opts, cfg.ClientOptions...)

	c, err := client.Dial(ccfg.Addr, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var out *Output
	if cfg.Stdout != nil {
		out = NewOutput(ParseFormat(ccfg.Output), cfg.Stdout)
	} else {
		out = NewStdout(ParseFormat(ccfg.Output))
	}

	env := &Env{Config: ccfg, Client: c, Out: out, Keyring: Keyring(ccfg)}
	if err := cfg.Run(ctx, env); err != nil {
		logger.ErrorContext(ctx, "command failed", "error", err)
		if rerr := RenderError(out, cfg.Name, err); rerr != nil {
			return err
		}
		return &ReportedError{Err: err}
	}
	return nil
}

// RenderError renders err, tagging guardian errors with their code.
func RenderError(out *Output, name string, err error) error {
	e := out.Error(name, err)
	var ge *guardian.Error
	if errors.As(err, &ge) {
		e = e.WithCode(string(ge.Code))
		for _, k := range slices.Sorted(maps.Keys(ge.Metadata)) {
			e = e.With(k, ge.Metadata[k])
		}
	}
	return e.Render()
}

// OpenLogger opens the client log file. When the file cannot be opened
// logging is discarded rather than written to the terminal.
func OpenLogger(cfg config.ClientConfig) (*logging.Logger, func()) {
	f, err := logging.OpenFile(cfg.DataDir)
	if err != nil {
		return logging.Discard(), func() {}
	}
	return logging.SetupWriter(cfg.LogLevel, "text", f), func() { _ = f.Close() }
}
