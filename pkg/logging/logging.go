// Package logging provides the slog setup shared by arc-guardian client
// commands. Client logs go to a file under the data directory so they do
// not mix with command output.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gezibash/arc-guardian/pkg/identity"
)

// Logger wraps slog.Logger with guardian-specific helpers.
type Logger struct {
	base  *slog.Logger
	attrs []slog.Attr
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown
// values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupWriter builds a text or json logger on w. It does not touch the
// slog default.
func SetupWriter(level, format string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{base: slog.New(handler)}
}

// OpenFile opens {dataDir}/log/cli.log for appending, creating it if needed.
func OpenFile(dataDir string) (*os.File, error) {
	logDir := filepath.Join(dataDir, "log")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, "cli.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is built from the data dir
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{base: slog.New(slog.DiscardHandler)}
}

// New wraps base. A nil base uses slog.Default().
func New(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{base: base}
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(attrs ...slog.Attr) *Logger {
	newAttrs := make([]slog.Attr, len(l.attrs), len(l.attrs)+len(attrs))
	copy(newAttrs, l.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &Logger{base: l.base, attrs: newAttrs}
}

// WithPubkey adds a shortened public key attribute.
func (l *Logger) WithPubkey(key string, pk identity.PublicKey) *Logger {
	return l.With(slog.String(key, FormatPubkey(pk)))
}

func (l *Logger) WithComponent(name string) *Logger {
	return l.With(slog.String("component", name))
}

func (l *Logger) WithError(err error) *Logger {
	return l.With(slog.String("error", err.Error()))
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.base.Enabled(ctx, level) {
		return
	}
	allArgs := make([]any, 0, len(l.attrs)+len(args))
	for _, attr := range l.attrs {
		allArgs = append(allArgs, attr)
	}
	allArgs = append(allArgs, args...)
	l.base.Log(ctx, level, msg, allArgs...)
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.base
}

// FormatPubkey returns "algo:" plus the first 8 key bytes in hex.
func FormatPubkey(pk identity.PublicKey) string {
	return FormatPubkeyHex(identity.EncodePublicKey(pk))
}

// FormatPubkeyHex shortens an "algo:hex" or bare hex key.
func FormatPubkeyHex(s string) string {
	algo, hexPart, ok := strings.Cut(s, ":")
	if !ok {
		algo, hexPart = "", s
	}
	if len(hexPart) > 16 {
		hexPart = hexPart[:16] + "..."
	}
	if algo == "" {
		return hexPart
	}
	return algo + ":" + hexPart
}
