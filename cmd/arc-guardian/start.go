package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-guardian/internal/config"
	"github.com/gezibash/arc-guardian/internal/node"
	"github.com/gezibash/arc-guardian/internal/observability"
	"github.com/gezibash/arc-guardian/internal/server"
)

const shutdownTimeout = 15 * time.Second

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the guardian server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, v)
		},
	}
	config.BindServeFlags(cmd, v)
	return cmd
}

func runStart(cmd *cobra.Command, v *viper.Viper) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Observability.ServiceVersion == config.Defaults.ServiceVersion {
		cfg.Observability.ServiceVersion = version
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(ctx, observability.ObsConfig{
		LogLevel:       cfg.Observability.LogLevel,
		LogFormat:      cfg.Observability.LogFormat,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPProtocol:   cfg.Observability.OTLPProtocol,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	}, os.Stderr)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return obs.Close(shutdownCtx)
	}

	if cfg.Observability.MetricsAddr != "" {
		obs.ServeMetrics(cfg.Observability.MetricsAddr)
	}

	n, err := node.New(ctx, cfg, obs.Metrics)
	if err != nil {
		_ = shutdown()
		return fmt.Errorf("init guardian: %w", err)
	}
	obs.Shutdown.Register("store", func(context.Context) error {
		return n.Close()
	})
	obs.Logger.Info("storage initialized", "backend", cfg.Storage.Backend, "data_dir", cfg.DataDir)
	if expr := n.Policy.Expr(); expr != "" {
		obs.Logger.Info("initiate policy enabled", "expr", expr)
	}

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		_ = shutdown()
		return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
	}

	srv := server.New(lis, server.Config{
		MaxRecvMsgSize: cfg.GRPC.MaxRecvMsgSize,
		MaxClockSkew:   cfg.Auth.MaxClockSkew,
	}, obs, n.Registry, n.Recovery)
	obs.Shutdown.Register("grpc-server", func(ctx context.Context) error {
		srv.Stop(ctx)
		return nil
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()
	obs.Logger.Info("serving", "addr", srv.Addr(), "metrics", cfg.Observability.MetricsAddr)

	select {
	case <-ctx.Done():
		obs.Logger.Info("shutdown signal received")
		return shutdown()
	case err := <-serveErr:
		_ = shutdown()
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}
