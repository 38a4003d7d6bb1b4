// Package observability wires structured logging, Prometheus metrics and
// OpenTelemetry tracing for the guardian service.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ObsConfig is the subset of service configuration this package needs.
type ObsConfig struct {
	LogLevel       string
	LogFormat      string
	OTLPEndpoint   string
	OTLPProtocol   string
	ServiceName    string
	ServiceVersion string
}

// Observability bundles the logger, metrics, tracer provider and shutdown hooks.
type Observability struct {
	Logger         *slog.Logger
	Metrics        *Metrics
	TracerProvider trace.TracerProvider
	Shutdown       *ShutdownCoordinator
	ServiceName    string
	ServiceVersion string
}

// New sets up logging and metrics, and tracing when an OTLP endpoint is set.
func New(ctx context.Context, cfg ObsConfig, w io.Writer) (*Observability, error) {
	o := &Observability{
		Logger:         SetupLogger(cfg.LogLevel, cfg.LogFormat, w),
		Metrics:        NewMetrics(),
		Shutdown:       &ShutdownCoordinator{},
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
	}

	if cfg.OTLPEndpoint == "" {
		o.TracerProvider = tracenoop.NewTracerProvider()
		o.Logger.Info("tracing disabled (no otlp_endpoint configured)")
		return o, nil
	}

	tp, err := InitTracer(ctx, TracerConfig{
		Endpoint:       cfg.OTLPEndpoint,
		Protocol:       cfg.OTLPProtocol,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	o.TracerProvider = tp
	o.Shutdown.Register("tracer", tp.Shutdown)
	o.Logger.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint, "protocol", cfg.OTLPProtocol)
	return o, nil
}

// Close runs the registered shutdown hooks.
func (o *Observability) Close(ctx context.Context) error {
	return o.Shutdown.Shutdown(ctx)
}

// MetricsHandler returns an http.Handler serving /metrics and /health.
func (o *Observability) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.Metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// ServeMetrics starts the metrics HTTP server in the background and
// registers its shutdown.
func (o *Observability) ServeMetrics(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           o.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		o.Logger.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.Logger.Error("metrics server error", "error", err)
		}
	}()

	o.Shutdown.Register("metrics-server", srv.Shutdown)
	return srv
}
