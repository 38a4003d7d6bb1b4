// Package envelope authenticates guardian RPC callers. A client signs the
// method name, a timestamp and a digest of the request body; the server
// verifies the signature and places the caller in the request context.
package envelope

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"strconv"
	"time"

	"google.golang.org/protobuf/proto"

	"github.com/gezibash/arc-guardian/pkg/identity"
)

var (
	// ErrInvalidSignature indicates the signature does not cover the request.
	ErrInvalidSignature = errors.New("invalid envelope signature")
	// ErrClockSkew indicates the envelope timestamp is outside the allowed window.
	ErrClockSkew = errors.New("envelope timestamp outside allowed clock skew")
)

var marshalOpts = proto.MarshalOptions{Deterministic: true}

// Envelope is the signed identity header attached to a request.
type Envelope struct {
	From      identity.PublicKey
	Timestamp int64 // unix milliseconds
	Signature identity.Signature
}

// Time returns the envelope timestamp.
func (e *Envelope) Time() time.Time { return time.UnixMilli(e.Timestamp) }

// SigningPayload returns the bytes a caller signs for method: the method
// name, the decimal timestamp and the SHA-256 of the body, separated by
// newlines.
func SigningPayload(method string, timestamp int64, body []byte) []byte {
	sum := sha256.Sum256(body)
	var b bytes.Buffer
	b.Grow(len(method) + 24 + len(sum))
	b.WriteString(method)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('\n')
	b.Write(sum[:])
	return b.Bytes()
}

// Body returns the deterministic wire encoding of msg that is covered by
// the signature.
func Body(msg proto.Message) ([]byte, error) {
	return marshalOpts.Marshal(msg)
}

// Seal signs a request to method carrying body at time now.
func Seal(signer identity.Signer, method string, body []byte, now time.Time) (*Envelope, error) {
	ts := now.UnixMilli()
	sig, err := signer.Sign(SigningPayload(method, ts, body))
	if err != nil {
		return nil, err
	}
	return &Envelope{From: signer.PublicKey(), Timestamp: ts, Signature: sig}, nil
}

// Open verifies that env signs a request to method carrying body.
func Open(env *Envelope, method string, body []byte) error {
	if !identity.Verify(env.From, SigningPayload(method, env.Timestamp, body), env.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// CheckSkew rejects envelopes stamped more than maxSkew away from now.
// A zero maxSkew disables the check.
func CheckSkew(env *Envelope, now time.Time, maxSkew time.Duration) error {
	if maxSkew <= 0 {
		return nil
	}
	d := now.Sub(env.Time())
	if d > maxSkew || d < -maxSkew {
		return ErrClockSkew
	}
	return nil
}
