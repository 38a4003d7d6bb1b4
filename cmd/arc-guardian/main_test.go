package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-guardian/internal/cli"
	"github.com/gezibash/arc-guardian/internal/config"
	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/internal/node"
	"github.com/gezibash/arc-guardian/internal/server"
)

type cliEnv struct {
	t       *testing.T
	dataDir string
	addr    string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Chdir(t.TempDir())

	n, err := node.New(context.Background(), config.Config{
		DataDir: t.TempDir(),
		Storage: config.StorageConfig{Backend: "memory"},
	}, nil)
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := server.New(lis, server.Config{}, nil, n.Registry, n.Recovery)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
		_ = n.Close()
	})

	return &cliEnv{t: t, dataDir: t.TempDir(), addr: srv.Addr()}
}

// run executes the CLI with a fresh viper, like a separate process would.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var buf bytes.Buffer
	root := newRootCmd(viper.New())
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--data-dir", e.dataDir, "--addr", e.addr}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// runJSON runs with -o json and returns the envelope data object.
func (e *cliEnv) runJSON(args ...string) map[string]any {
	e.t.Helper()
	out, err := e.run(append([]string{"-o", "json"}, args...)...)
	if err != nil {
		e.t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return decodeData(e.t, out)
}

func decodeData(t *testing.T, out string) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return env.Data
}

func TestRecoveryThroughCLI(t *testing.T) {
	e := newCLIEnv(t)

	owner := e.runJSON("keys", "generate", "owner", "--algo", "secp256k1", "--default")["account"].(string)
	for _, alias := range []string{"g1", "g2", "g3", "laptop"} {
		e.runJSON("keys", "generate", alias)
	}

	if got := e.runJSON("whoami")["account"]; got != owner {
		t.Fatalf("whoami = %v, want %s", got, owner)
	}

	reg := e.runJSON("register", "g1", "g2", "g3", "--threshold", "2")
	if reg["account"] != owner || reg["threshold"] != float64(2) {
		t.Fatalf("register = %v", reg)
	}

	th := e.runJSON("threshold")
	if th["threshold"] != float64(2) || th["has_guardians"] != true {
		t.Fatalf("threshold = %v", th)
	}

	initiated := e.runJSON("initiate", "owner", "laptop")
	id := initiated["session_id"].(string)

	active := e.runJSON("active", owner)
	if active["active"] != true || active["session_id"] != id {
		t.Fatalf("active = %v", active)
	}

	first := e.runJSON("--key", "g1", "approve", id)
	if first["approvals"] != "1/2" || first["approved"] != false {
		t.Fatalf("first approval = %v", first)
	}
	second := e.runJSON("--key", "g2", "approve", id)
	if second["approved"] != true {
		t.Fatalf("second approval = %v", second)
	}

	status := e.runJSON("status", id)
	if status["approved"] != true || status["finalized"] != false || status["initiator"] != owner {
		t.Fatalf("status = %v", status)
	}

	fin := e.runJSON("finalize", id)
	if fin["account"] != owner {
		t.Fatalf("finalize = %v", fin)
	}

	if got := e.runJSON("active", "owner")["active"]; got != false {
		t.Fatalf("active after finalize = %v", got)
	}

	out, err := e.run("-o", "json", "--key", "g3", "approve", id)
	var reported *cli.ReportedError
	if !errors.As(err, &reported) || !errors.Is(err, guardian.ErrSessionClosed) {
		t.Fatalf("late approve err = %v", err)
	}
	if code := decodeData(t, out)["code"]; code != string(guardian.CodeSessionClosed) {
		t.Fatalf("late approve code = %v", code)
	}
}

func TestGuardiansList(t *testing.T) {
	e := newCLIEnv(t)
	e.runJSON("keys", "generate", "--default")
	g1 := e.runJSON("keys", "generate", "g1")["account"].(string)
	g2 := e.runJSON("keys", "generate", "g2", "--algo", "secp256k1")["account"].(string)
	e.runJSON("register", g1, "g2", "-t", "1")

	out, err := e.run("-o", "json", "guardians")
	if err != nil {
		t.Fatal(err)
	}
	var env struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatal(err)
	}
	if len(env.Data) != 2 || env.Data[0] != g1 || env.Data[1] != g2 {
		t.Fatalf("guardians = %v", env.Data)
	}
}

func TestClientCommandErrors(t *testing.T) {
	e := newCLIEnv(t)

	if _, err := e.run("register", "a", "b", "-t", "1"); !errors.Is(err, cli.ErrNoKey) {
		t.Errorf("register without key: err = %v", err)
	}
	if _, err := e.run("approve", "not-a-number"); err == nil {
		t.Error("approve with bad session id: expected error")
	}
	if _, err := e.run("guardians"); err == nil || !strings.Contains(err.Error(), "account required") {
		t.Errorf("guardians without account: err = %v", err)
	}
	if _, err := e.run("register", "only-one", "-t", "1"); err == nil {
		t.Error("register with one guardian: expected arg error")
	}

	e.runJSON("keys", "generate", "--default")
	out, err := e.run("status", "99")
	if !errors.Is(err, guardian.ErrSessionNotFound) {
		t.Errorf("status of unknown session: err = %v", err)
	}
	if !strings.Contains(out, "SESSION_NOT_FOUND") {
		t.Errorf("text error output = %q", out)
	}
}

func TestPing(t *testing.T) {
	e := newCLIEnv(t)
	data := e.runJSON("ping")
	if data["address"] != e.addr {
		t.Fatalf("ping = %v", data)
	}
}

func TestKeysCommands(t *testing.T) {
	e := newCLIEnv(t)

	e.runJSON("keys", "generate", "a")
	if _, err := e.run("keys", "generate", "a"); err == nil {
		t.Error("duplicate alias without --force: expected error")
	}
	e.runJSON("keys", "generate", "a", "--force")

	imported := e.runJSON("keys", "import", "b", strings.Repeat("07", 32), "--algo", "secp256k1")
	if acct := imported["account"].(string); !strings.HasPrefix(acct, "secp256k1:") {
		t.Errorf("imported account = %q", acct)
	}

	e.runJSON("keys", "default", "b")
	shown := e.runJSON("keys", "show")
	if shown["account"] != imported["account"] || shown["default"] != true {
		t.Errorf("show default = %v", shown)
	}

	out, err := e.run("-o", "json", "keys", "list")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Data) != 3 {
		t.Errorf("keys list = %v", list.Data)
	}

	e.runJSON("keys", "delete", "b")
	if _, err := e.run("whoami"); !errors.Is(err, cli.ErrNoKey) {
		t.Errorf("whoami after deleting default: err = %v", err)
	}
}

func TestVersion(t *testing.T) {
	e := newCLIEnv(t)
	out, err := e.run("version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "arc-guardian dev\n") {
		t.Errorf("version = %q", out)
	}
}
