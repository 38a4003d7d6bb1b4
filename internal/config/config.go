package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/storage"
)

// Config is the guardian server configuration.
type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	GRPC          GRPCConfig          `mapstructure:"grpc"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Recovery      RecoveryConfig      `mapstructure:"recovery"`
}

type GRPCConfig struct {
	Addr           string `mapstructure:"addr"`
	MaxRecvMsgSize int    `mapstructure:"max_recv_msg_size"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// StorageConfig selects a kvstore backend. Config is handed to the backend
// factory unchanged, apart from a data_dir-relative default path.
type StorageConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}

type AuthConfig struct {
	MaxClockSkew time.Duration `mapstructure:"max_clock_skew"`
}

type RecoveryConfig struct {
	// InitiatePolicy is an optional CEL expression gating initiate.
	InitiatePolicy string `mapstructure:"initiate_policy"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", Defaults.DataDir)

	v.SetDefault("grpc.addr", Defaults.GRPCAddr)
	v.SetDefault("grpc.max_recv_msg_size", Defaults.MaxRecvMsgSize)

	v.SetDefault("observability.log_level", Defaults.LogLevel)
	v.SetDefault("observability.log_format", Defaults.LogFormat)
	v.SetDefault("observability.metrics_addr", Defaults.MetricsAddr)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", Defaults.OTLPProtocol)
	v.SetDefault("observability.service_name", Defaults.ServiceName)
	v.SetDefault("observability.service_version", Defaults.ServiceVersion)

	v.SetDefault("storage.backend", Defaults.Backend)

	v.SetDefault("auth.max_clock_skew", Defaults.MaxClockSkew)
	v.SetDefault("recovery.initiate_policy", "")
}

// BackendConfig returns the storage config for the selected backend. File
// backends without an explicit path are placed under DataDir.
func (c Config) BackendConfig() storage.Config {
	out := make(storage.Config, len(c.Storage.Config)+1)
	maps.Copy(out, c.Storage.Config)
	if out["path"] != "" {
		return out
	}
	switch c.Storage.Backend {
	case "badger":
		out["path"] = filepath.Join(c.DataDir, "store")
	case "sqlite":
		out["path"] = filepath.Join(c.DataDir, "guardian.db")
	}
	return out
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	if c.GRPC.Addr == "" {
		return fmt.Errorf("grpc.addr is required")
	}
	if !kvstore.IsRegistered(c.Storage.Backend) {
		return fmt.Errorf("storage.backend %q unknown (available: %v)", c.Storage.Backend, kvstore.ListBackends())
	}
	if c.Auth.MaxClockSkew < 0 {
		return fmt.Errorf("auth.max_clock_skew must not be negative")
	}
	return nil
}
