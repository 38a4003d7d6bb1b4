// Package server exposes the guardian registry and recovery manager over gRPC.
package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gezibash/arc-guardian/internal/envelope"
	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/internal/middleware"
	"github.com/gezibash/arc-guardian/internal/observability"
	"github.com/gezibash/arc-guardian/pkg/guardianapi"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

// Config holds transport settings.
type Config struct {
	MaxRecvMsgSize int
	MaxClockSkew   time.Duration
	Now            func() time.Time
}

type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	health     *health.Server
	logger     *slog.Logger
}

// New builds a server that will accept connections on lis. obs may be nil
// in tests; the server then logs to slog.Default and records no metrics.
func New(lis net.Listener, cfg Config, obs *observability.Observability, registry *guardian.Registry, recovery *guardian.Recovery, opts ...grpc.ServerOption) *Server {
	logger := slog.Default()
	var metrics *observability.Metrics
	if obs != nil {
		logger = obs.Logger
		metrics = obs.Metrics
	}

	mw := &middleware.Chain{
		Pre:  []middleware.Hook{middleware.RequestID()},
		Post: []middleware.Hook{middleware.Logging(logger)},
	}

	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			observability.UnaryServerInterceptor(metrics),
			envelope.UnaryServerInterceptor(envelope.ServerOptions{
				MaxClockSkew: cfg.MaxClockSkew,
				Now:          cfg.Now,
				Chain:        mw,
				CallerName:   func(pk identity.PublicKey) string { return string(guardian.AccountFromPublicKey(pk)) },
			}),
		),
	}
	if cfg.MaxRecvMsgSize > 0 {
		serverOpts = append(serverOpts, grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize))
	}
	serverOpts = append(serverOpts, opts...)

	grpcServer := grpc.NewServer(serverOpts...)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	guardianapi.RegisterGuardianServiceServer(grpcServer, &guardianService{
		registry: registry,
		recovery: recovery,
		logger:   logger,
	})

	return &Server{
		grpcServer: grpcServer,
		listener:   lis,
		health:     hs,
		logger:     logger,
	}
}

func (s *Server) SetServingStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	if s.health != nil {
		s.health.SetServingStatus("", status)
		s.health.SetServingStatus(guardianapi.ServiceName, status)
	}
}

// Serve marks the server healthy and blocks serving requests.
func (s *Server) Serve() error {
	s.SetServingStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	return s.grpcServer.Serve(s.listener)
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop drains in-flight calls, forcing a hard stop once ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.SetServingStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("graceful stop timed out, forcing")
		s.grpcServer.Stop()
		<-done
	}
}

func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}
