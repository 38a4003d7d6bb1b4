// Package guardian implements guardian-based social recovery: an account
// owner registers a fixed set of guardians and an approval threshold, and
// a quorum of those guardians can later approve replacing the owner's key.
//
// All state lives in a kvstore.Backend. Every mutating call runs in a
// single Update transaction and writes nothing when it returns an error.
package guardian

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/observability"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

// MinGuardians is the smallest accepted guardian set.
const MinGuardians = 2

// GuardianSet is an account's registered guardians. It never changes
// after registration.
type GuardianSet struct {
	Account      Account   `json:"account"`
	Guardians    []Account `json:"guardians"`
	Threshold    int       `json:"threshold"`
	Initialized  bool      `json:"initialized"`
	RegisteredAt time.Time `json:"registered_at,omitzero"`
}

// Contains reports whether a is one of the guardians.
func (gs GuardianSet) Contains(a Account) bool {
	return slices.Contains(gs.Guardians, a)
}

// Session is one recovery attempt for an account.
type Session struct {
	ID            SessionID          `json:"id"`
	Account       Account            `json:"account"`
	ProposedKey   identity.PublicKey `json:"proposed_key"`
	Initiator     Account            `json:"initiator,omitempty"`
	ApprovalCount int                `json:"approval_count"`
	Approved      bool               `json:"approved"`
	Approvers     []Account          `json:"approvers"`
	Finalized     bool               `json:"finalized"`
	CreatedAt     time.Time          `json:"created_at,omitzero"`
	ApprovedAt    time.Time          `json:"approved_at,omitzero"`
	FinalizedAt   time.Time          `json:"finalized_at,omitzero"`
}

// InitiateRequest is what an InitiateGuard sees before a session opens.
type InitiateRequest struct {
	Account     Account
	Initiator   Account
	ProposedKey identity.PublicKey
	Guardians   GuardianSet
}

// InitiateGuard is an admission check run inside the initiate transaction,
// after the built-in checks pass. A non-nil error aborts the initiate.
type InitiateGuard interface {
	AllowInitiate(ctx context.Context, req InitiateRequest) error
}

// Option configures a Registry or Recovery.
type Option func(*options)

type options struct {
	now     func() time.Time
	metrics *observability.Metrics
	guard   InitiateGuard
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics records operation and lifecycle metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithInitiateGuard installs an admission check for Initiate.
func WithInitiateGuard(g InitiateGuard) Option {
	return func(o *options) { o.guard = g }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// base is the state shared by Registry and Recovery.
type base struct {
	store kvstore.Backend
	options
}

func (b *base) timestamp() time.Time {
	return b.now().UTC()
}

// end closes op, counting store conflicts separately.
func (b *base) end(op *observability.Operation, err error) {
	if errors.Is(err, kvstore.ErrConflict) {
		b.metrics.RecordConflict()
	}
	op.End(err)
}

// loadGuardianSet reads the guardian set for account within r.
func loadGuardianSet(r kvstore.Reader, account Account) (GuardianSet, error) {
	var gs GuardianSet
	err := kvstore.GetJSON(r, guardianSetKey(account), &gs)
	if errors.Is(err, kvstore.ErrNotFound) || (err == nil && !gs.Initialized) {
		return GuardianSet{}, newError(CodeNotInitialized, "guardians not initialized", "account", string(account))
	}
	return gs, err
}

func loadSession(r kvstore.Reader, id SessionID) (Session, error) {
	var s Session
	err := kvstore.GetJSON(r, sessionKey(id), &s)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Session{}, newError(CodeSessionNotFound, "recovery session not found", "session_id", id.String())
	}
	return s, err
}
