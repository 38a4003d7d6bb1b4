package envelope

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	grpcmd "google.golang.org/grpc/metadata"

	"github.com/gezibash/arc-guardian/pkg/identity"
)

const (
	keyFrom      = "arc-from"
	keyTimestamp = "arc-timestamp"
	keySignature = "arc-signature"
)

// ErrMissing is returned by Extract when md carries no envelope at all.
var ErrMissing = errors.New("no envelope metadata")

// Extract pulls an envelope from incoming gRPC metadata. It returns
// ErrMissing when none of the envelope keys are present and a descriptive
// error when only some are or a value does not parse.
func Extract(md grpcmd.MD) (*Envelope, error) {
	from, ts, sig := firstVal(md, keyFrom), firstVal(md, keyTimestamp), firstVal(md, keySignature)
	if from == "" && ts == "" && sig == "" {
		return nil, ErrMissing
	}

	var env Envelope
	var err error
	if env.From, err = identity.DecodePublicKey(from); err != nil {
		return nil, fmt.Errorf("parse %s: %w", keyFrom, err)
	}
	if ts == "" {
		return nil, fmt.Errorf("missing %s", keyTimestamp)
	}
	if env.Timestamp, err = strconv.ParseInt(ts, 10, 64); err != nil {
		return nil, fmt.Errorf("parse %s: %w", keyTimestamp, err)
	}
	if env.Signature, err = identity.DecodeSignature(sig); err != nil {
		return nil, fmt.Errorf("parse %s: %w", keySignature, err)
	}
	return &env, nil
}

// Pairs returns env as metadata key/value pairs.
func Pairs(env *Envelope) grpcmd.MD {
	return grpcmd.Pairs(
		keyFrom, identity.EncodePublicKey(env.From),
		keyTimestamp, strconv.FormatInt(env.Timestamp, 10),
		keySignature, identity.EncodeSignature(env.Signature),
	)
}

// InjectOutgoing appends env to the outgoing metadata of ctx.
func InjectOutgoing(ctx context.Context, env *Envelope) context.Context {
	md := Pairs(env)
	kv := make([]string, 0, 2*len(md))
	for k, vals := range md {
		for _, v := range vals {
			kv = append(kv, k, v)
		}
	}
	return grpcmd.AppendToOutgoingContext(ctx, kv...)
}

func firstVal(md grpcmd.MD, key string) string {
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
