// Package middleware runs ordered hooks around each guardian RPC.
package middleware

import "context"

// CallInfo describes the current gRPC call for hook processing.
type CallInfo struct {
	FullMethod string
	// Caller is the authenticated account, empty for anonymous calls.
	Caller string
}

// Anonymous reports whether the call carried no signed identity.
func (c *CallInfo) Anonymous() bool { return c.Caller == "" }

// Hook processes a call. Return a gRPC status error to reject.
type Hook func(ctx context.Context, info *CallInfo) (context.Context, error)

// Chain holds ordered pre and post hooks. A nil Chain runs nothing.
type Chain struct {
	Pre  []Hook
	Post []Hook
}

// RunPre executes pre-hooks in order. Stops on first error.
func (c *Chain) RunPre(ctx context.Context, info *CallInfo) (context.Context, error) {
	if c == nil {
		return ctx, nil
	}
	return run(ctx, info, c.Pre)
}

// RunPost executes post-hooks in order. Stops on first error.
func (c *Chain) RunPost(ctx context.Context, info *CallInfo) (context.Context, error) {
	if c == nil {
		return ctx, nil
	}
	return run(ctx, info, c.Post)
}

func run(ctx context.Context, info *CallInfo, hooks []Hook) (context.Context, error) {
	for _, h := range hooks {
		var err error
		ctx, err = h(ctx, info)
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}
