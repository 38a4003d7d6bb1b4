package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BindServeFlags binds the start command's flags to viper.
func BindServeFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.String("listen", "", "gRPC listen address (default "+Defaults.GRPCAddr+")")
	f.String("config", "", "config file path")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")
	f.String("metrics-addr", "", "metrics HTTP listen address, empty to disable")
	f.String("backend", "", "storage backend (badger, sqlite, redis, memory)")
	f.String("initiate-policy", "", "CEL expression gating initiate")

	_ = v.BindPFlag("grpc.addr", f.Lookup("listen"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("storage.backend", f.Lookup("backend"))
	_ = v.BindPFlag("recovery.initiate_policy", f.Lookup("initiate-policy"))
}

// BindClientFlags binds the persistent flags shared by every command.
func BindClientFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()
	f.String("data-dir", "", "data directory (default ~/.arc/guardian)")
	f.String("key", "", "key alias or public key used to sign requests")
	f.String("addr", "", "guardian server address (default "+Defaults.ClientAddr+")")
	f.StringP("output", "o", "", "output format (text, json, markdown)")

	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("key", f.Lookup("key"))
	_ = v.BindPFlag("addr", f.Lookup("addr"))
	_ = v.BindPFlag("output", f.Lookup("output"))
}

func readConfig(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("guardian")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.arc/guardian")
		v.AddConfigPath("/etc/arc-guardian")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load reads server config from flags, env, and file, returning the merged Config.
func Load(v *viper.Viper, configFile string) (Config, error) {
	setDefaults(v)
	if err := readConfig(v, configFile); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// ClientConfig holds the settings client commands need.
type ClientConfig struct {
	DataDir string `mapstructure:"data_dir"`
	Addr    string `mapstructure:"addr"`
	Key     string `mapstructure:"key"`
	Output  string `mapstructure:"output"`

	// LogLevel applies to the client log file under DataDir.
	LogLevel string `mapstructure:"log_level"`
}

// LoadClient reads client settings. Unlike Load it never fails on a
// missing config file.
func LoadClient(v *viper.Viper) (ClientConfig, error) {
	v.SetDefault("data_dir", Defaults.DataDir)
	v.SetDefault("addr", Defaults.ClientAddr)
	v.SetDefault("output", Defaults.Output)
	v.SetDefault("log_level", Defaults.LogLevel)
	if err := readConfig(v, ""); err != nil {
		return ClientConfig{}, err
	}
	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
