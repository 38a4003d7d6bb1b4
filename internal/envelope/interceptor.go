package envelope

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcmd "google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/gezibash/arc-guardian/internal/middleware"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

// DefaultMaxClockSkew bounds how far an envelope timestamp may drift from
// the server clock.
const DefaultMaxClockSkew = 2 * time.Minute

// ServerOptions configures UnaryServerInterceptor.
type ServerOptions struct {
	MaxClockSkew time.Duration
	Now          func() time.Time
	Chain        *middleware.Chain
	// CallerName maps a verified key to the name hooks see as CallInfo.Caller.
	CallerName func(identity.PublicKey) string
}

// UnaryServerInterceptor verifies request envelopes and runs the middleware
// chain around the handler. Requests without envelope metadata pass through
// as anonymous; malformed, stale or badly signed envelopes are rejected
// with Unauthenticated.
func UnaryServerInterceptor(opts ServerOptions) grpc.UnaryServerInterceptor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CallerName == nil {
		opts.CallerName = identity.EncodePublicKey
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		callInfo := &middleware.CallInfo{FullMethod: info.FullMethod}

		caller, err := authenticate(ctx, req, info.FullMethod, opts)
		if err != nil {
			return nil, err
		}
		if caller != nil {
			ctx = WithCaller(ctx, caller)
			callInfo.Caller = opts.CallerName(caller.PublicKey)
		}

		ctx, err = opts.Chain.RunPre(ctx, callInfo)
		if err != nil {
			return nil, err
		}

		resp, handlerErr := handler(ctx, req)

		if _, err := opts.Chain.RunPost(ctx, callInfo); err != nil && handlerErr == nil {
			return nil, err
		}
		return resp, handlerErr
	}
}

func authenticate(ctx context.Context, req any, method string, opts ServerOptions) (*Caller, error) {
	md, _ := grpcmd.FromIncomingContext(ctx)
	env, err := Extract(md)
	if errors.Is(err, ErrMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "extract envelope: %v", err)
	}
	if err := CheckSkew(env, opts.Now(), opts.MaxClockSkew); err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "verify envelope: %v", err)
	}

	msg, ok := req.(proto.Message)
	if !ok {
		return nil, status.Error(codes.Internal, "request is not a proto message")
	}
	body, err := Body(msg)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal request: %v", err)
	}
	if err := Open(env, method, body); err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "verify envelope: %v", err)
	}
	from, err := identity.CanonicalPublicKey(env.From)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "verify envelope: %v", err)
	}
	return &Caller{PublicKey: from, SignedAt: env.Time()}, nil
}

// UnaryClientInterceptor signs every outgoing request with signer. A nil
// signer sends requests anonymously.
func UnaryClientInterceptor(signer identity.Signer, now func() time.Time) grpc.UnaryClientInterceptor {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if signer == nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		msg, ok := req.(proto.Message)
		if !ok {
			return status.Error(codes.Internal, "request is not a proto message")
		}
		body, err := Body(msg)
		if err != nil {
			return status.Errorf(codes.Internal, "marshal request: %v", err)
		}
		env, err := Seal(signer, method, body, now())
		if err != nil {
			return status.Errorf(codes.Internal, "seal envelope: %v", err)
		}
		return invoker(InjectOutgoing(ctx, env), method, req, reply, cc, opts...)
	}
}
