// Package client is the Go client for the guardian service.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gezibash/arc-guardian/internal/envelope"
	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/pkg/guardianapi"
	"github.com/gezibash/arc-guardian/pkg/identity"
	"github.com/gezibash/arc-guardian/pkg/logging"
)

type Client struct {
	conn   *grpc.ClientConn
	stub   *guardianapi.GuardianServiceClient
	health grpc_health_v1.HealthClient
	self   identity.PublicKey
	log    *logging.Logger
}

type clientConfig struct {
	signer   identity.Signer
	now      func() time.Time
	dialOpts []grpc.DialOption
	logger   *logging.Logger
}

// Option configures client behavior.
type Option func(*clientConfig)

// WithIdentity signs outgoing requests with signer. Without it the client
// calls anonymously and can only initiate and query.
func WithIdentity(signer identity.Signer) Option {
	return func(c *clientConfig) { c.signer = signer }
}

// WithClock overrides the clock used to timestamp request envelopes.
func WithClock(now func() time.Time) Option {
	return func(c *clientConfig) { c.now = now }
}

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *clientConfig) { c.dialOpts = append(c.dialOpts, opts...) }
}

// WithLogger logs each call at debug level, and failures at warn.
func WithLogger(l *logging.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

func Dial(addr string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{now: time.Now, logger: logging.Discard()}
	for _, o := range opts {
		o(cfg)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(envelope.UnaryClientInterceptor(cfg.signer, cfg.now)),
	}
	dialOpts = append(dialOpts, cfg.dialOpts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := &Client{
		conn:   conn,
		stub:   guardianapi.NewGuardianServiceClient(conn),
		health: grpc_health_v1.NewHealthClient(conn),
		log:    cfg.logger.WithComponent("guardian-client"),
	}
	if cfg.signer != nil {
		c.self = cfg.signer.PublicKey()
		c.log = c.log.WithPubkey("self", c.self)
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Account returns the account the client signs as, empty when anonymous.
func (c *Client) Account() guardian.Account {
	if c.self.IsZero() {
		return ""
	}
	return guardian.AccountFromPublicKey(c.self)
}

// Ping checks the server's health service.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: guardianapi.ServiceName})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("server not serving: %s", resp.GetStatus())
	}
	return nil
}

type encoder interface {
	Encode() (*structpb.Struct, error)
}

func call[Resp any](ctx context.Context, c *Client, method string, req encoder) (Resp, error) {
	var zero Resp
	in, err := req.Encode()
	if err != nil {
		return zero, err
	}
	start := time.Now()
	out, err := c.stub.Invoke(ctx, method, in)
	if err != nil {
		err = guardian.FromStatus(err)
		c.log.WarnContext(ctx, "call failed", "method", method, "code", guardian.GetCode(err), "error", err)
		return zero, err
	}
	c.log.DebugContext(ctx, "call", "method", method, "duration", time.Since(start))
	return guardianapi.Decode[Resp](out)
}
