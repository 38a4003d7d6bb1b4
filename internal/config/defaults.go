// Package config loads arc-guardian configuration from defaults, config
// files, ARC_GUARDIAN_* environment variables and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// EnvPrefix is the environment variable prefix, e.g. ARC_GUARDIAN_GRPC_ADDR.
const EnvPrefix = "ARC_GUARDIAN"

// Defaults holds the built-in values used when nothing else is configured.
var Defaults = struct {
	DataDir        string
	GRPCAddr       string
	ClientAddr     string
	MaxRecvMsgSize int
	MetricsAddr    string
	LogLevel       string
	LogFormat      string
	OTLPProtocol   string
	ServiceName    string
	ServiceVersion string
	Backend        string
	MaxClockSkew   time.Duration
	KeyName        string
	Output         string
}{
	DataDir:        DefaultDataDir(),
	GRPCAddr:       ":50061",
	ClientAddr:     "localhost:50061",
	MaxRecvMsgSize: 1 << 20,
	MetricsAddr:    ":9091",
	LogLevel:       "info",
	LogFormat:      "text",
	OTLPProtocol:   "http",
	ServiceName:    "arc-guardian",
	ServiceVersion: "dev",
	Backend:        "badger",
	MaxClockSkew:   2 * time.Minute,
	KeyName:        "default",
	Output:         "text",
}

// DefaultDataDir returns the default data directory (~/.arc/guardian).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".arc", "guardian")
	}
	return filepath.Join(home, ".arc", "guardian")
}
