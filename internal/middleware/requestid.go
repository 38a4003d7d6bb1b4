package middleware

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	grpcmd "google.golang.org/grpc/metadata"
)

// RequestIDHeader carries the correlation ID in both directions.
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// RequestID returns a pre-hook that assigns every call a correlation ID.
// An ID supplied by the client is kept when it parses as a UUID. The ID is
// echoed back in the response header.
func RequestID() Hook {
	return func(ctx context.Context, _ *CallInfo) (context.Context, error) {
		id := incomingRequestID(ctx)
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, grpcmd.Pairs(RequestIDHeader, id))
		return WithRequestID(ctx, id), nil
	}
}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the correlation ID stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logging returns a post-hook that logs each finished call with its
// correlation ID and caller.
func Logging(logger *slog.Logger) Hook {
	return func(ctx context.Context, info *CallInfo) (context.Context, error) {
		caller := info.Caller
		if info.Anonymous() {
			caller = "anonymous"
		}
		logger.DebugContext(ctx, "rpc",
			"method", info.FullMethod,
			"caller", caller,
			"request_id", RequestIDFrom(ctx),
		)
		return ctx, nil
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := grpcmd.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(RequestIDHeader)
	if len(vals) == 0 {
		return ""
	}
	if _, err := uuid.Parse(vals[0]); err != nil {
		return ""
	}
	return vals[0]
}
