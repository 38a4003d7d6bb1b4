package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gezibash/arc-guardian/pkg/identity"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWriter("debug", "json", &buf).
		WithComponent("client").
		WithError(errors.New("boom"))
	l.DebugContext(context.Background(), "call", "method", "/x")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v: %s", err, buf.String())
	}
	for k, want := range map[string]string{"msg": "call", "component": "client", "error": "boom", "method": "/x"} {
		if rec[k] != want {
			t.Errorf("%s = %v, want %q", k, rec[k], want)
		}
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWriter("warn", "text", &buf)
	l.InfoContext(context.Background(), "hidden")
	l.WarnContext(context.Background(), "shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWithDoesNotShareAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := SetupWriter("info", "text", &buf)
	_ = base.WithComponent("a")
	base.InfoContext(context.Background(), "plain")
	if strings.Contains(buf.String(), "component") {
		t.Errorf("parent logger picked up child attrs: %q", buf.String())
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	SetupWriter("info", "text", f).InfoContext(context.Background(), "hello")
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "log", "cli.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %q", data)
	}
}

func TestFormatPubkey(t *testing.T) {
	pk := identity.PublicKey{Algo: identity.AlgSecp256k1, Bytes: bytes.Repeat([]byte{0xab}, 33)}
	if got, want := FormatPubkey(pk), "secp256k1:abababababababab..."; got != want {
		t.Errorf("FormatPubkey = %q, want %q", got, want)
	}
	if got := FormatPubkeyHex("abcd"); got != "abcd" {
		t.Errorf("short hex = %q", got)
	}
	if got := FormatPubkeyHex("ed25519:0011"); got != "ed25519:0011" {
		t.Errorf("short tagged = %q", got)
	}
}
