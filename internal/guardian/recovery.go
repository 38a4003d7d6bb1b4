package guardian

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/observability"
	"github.com/gezibash/arc-guardian/pkg/identity"
)

// Recovery runs the session state machine: initiate, approve, finalize.
//
// A session moves Pending -> Approved once approvals reach the threshold
// and Approved -> Finalized on Finalize. Finalized is terminal. An account
// has at most one unfinalized session, tracked by its active-session marker.
type Recovery struct {
	base
}

// NewRecovery creates a Recovery over store.
func NewRecovery(store kvstore.Backend, opts ...Option) *Recovery {
	return &Recovery{base: base{store: store, options: buildOptions(opts)}}
}

// Initiate opens a session proposing proposedKey as account's new key and
// returns its ID. initiator may be empty for anonymous callers.
func (r *Recovery) Initiate(ctx context.Context, initiator, account Account, proposedKey identity.PublicKey) (id SessionID, err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "guardian.initiate", attribute.String("account", string(account)))
	defer func() { r.end(op, err) }()

	proposedKey, verr := identity.CanonicalPublicKey(proposedKey)
	if verr != nil {
		return 0, &Error{Code: CodeInvalidProposedKey, Message: "invalid proposed key", Cause: verr}
	}

	now := r.timestamp()
	err = r.store.Update(ctx, func(tx kvstore.Txn) error {
		gs, err := loadGuardianSet(tx, account)
		if err != nil {
			return err
		}
		active, err := kvstore.Exists(tx, activeSessionKey(account))
		if err != nil {
			return err
		}
		if active {
			return newError(CodeRecoveryAlreadyActive, "a recovery session is already active", "account", string(account))
		}
		if r.guard != nil {
			if err := r.guard.AllowInitiate(ctx, InitiateRequest{
				Account:     account,
				Initiator:   initiator,
				ProposedKey: proposedKey,
				Guardians:   gs,
			}); err != nil {
				return err
			}
		}

		var last SessionID
		if err := kvstore.GetJSON(tx, sessionCounterKey, &last); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
			return err
		}
		id = last + 1

		s := Session{
			ID:          id,
			Account:     account,
			ProposedKey: proposedKey,
			Initiator:   initiator,
			Approvers:   []Account{},
			CreatedAt:   now,
		}
		if err := kvstore.PutJSON(tx, sessionKey(id), s); err != nil {
			return err
		}
		if err := kvstore.PutJSON(tx, activeSessionKey(account), id); err != nil {
			return err
		}
		return kvstore.PutJSON(tx, sessionCounterKey, id)
	})
	if err != nil {
		return 0, wrapStore("initiate", err)
	}

	r.metrics.RecordEvent(observability.EventInitiated)
	slog.InfoContext(ctx, "recovery initiated",
		"account", account, "session_id", id, "proposed_key", identity.Fingerprint(proposedKey))
	return id, nil
}

// Approve records caller's approval of session id and returns the updated
// session. A guardian may approve a session once.
func (r *Recovery) Approve(ctx context.Context, id SessionID, caller Account) (s Session, err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "guardian.approve",
		attribute.String("session_id", id.String()),
		attribute.String("guardian", string(caller)),
	)
	defer func() { r.end(op, err) }()

	var reached bool
	now := r.timestamp()
	err = r.store.Update(ctx, func(tx kvstore.Txn) error {
		reached = false
		var err error
		s, err = loadSession(tx, id)
		if err != nil {
			return err
		}
		if s.Finalized {
			return newError(CodeSessionClosed, "recovery session already finalized", "session_id", id.String())
		}
		gs, err := loadGuardianSet(tx, s.Account)
		if err != nil {
			return err
		}
		if caller == "" || !gs.Contains(caller) {
			return newError(CodeNotGuardian, "caller is not a guardian of the account",
				"account", string(s.Account), "caller", string(caller))
		}
		marker := approverKey(id, caller)
		seen, err := kvstore.Exists(tx, marker)
		if err != nil {
			return err
		}
		if seen {
			return newError(CodeAlreadyApproved, "guardian already approved this session",
				"session_id", id.String(), "guardian", string(caller))
		}

		s.Approvers = append(s.Approvers, caller)
		s.ApprovalCount = len(s.Approvers)
		if !s.Approved && s.ApprovalCount >= gs.Threshold {
			s.Approved = true
			s.ApprovedAt = now
			reached = true
		}
		if err := tx.Put(marker, []byte{1}); err != nil {
			return err
		}
		return kvstore.PutJSON(tx, sessionKey(id), s)
	})
	if err != nil {
		return Session{}, wrapStore("approve", err)
	}

	r.metrics.RecordEvent(observability.EventApproved)
	if reached {
		r.metrics.RecordEvent(observability.EventQuorumReached)
	}
	slog.InfoContext(ctx, "recovery approved",
		"session_id", id, "guardian", caller, "approvals", s.ApprovalCount, "approved", s.Approved)
	return s, nil
}

// IsApproved reports whether session id has reached its threshold.
func (r *Recovery) IsApproved(ctx context.Context, id SessionID) (bool, error) {
	s, err := r.SessionInfo(ctx, id)
	if err != nil {
		return false, err
	}
	return s.Approved, nil
}

// SessionInfo returns the stored session.
func (r *Recovery) SessionInfo(ctx context.Context, id SessionID) (s Session, err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "guardian.session_info", attribute.String("session_id", id.String()))
	defer func() { r.end(op, err) }()

	err = r.store.View(ctx, func(rd kvstore.Reader) error {
		var err error
		s, err = loadSession(rd, id)
		return err
	})
	if err != nil {
		return Session{}, wrapStore("session info", err)
	}
	return s, nil
}

// Finalize closes an approved session and clears the account's
// active-session marker if it still points at id. The session record is
// kept and marked finalized.
func (r *Recovery) Finalize(ctx context.Context, id SessionID) (s Session, err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "guardian.finalize", attribute.String("session_id", id.String()))
	defer func() { r.end(op, err) }()

	now := r.timestamp()
	err = r.store.Update(ctx, func(tx kvstore.Txn) error {
		var err error
		s, err = loadSession(tx, id)
		if err != nil {
			return err
		}
		if s.Finalized {
			return newError(CodeSessionClosed, "recovery session already finalized", "session_id", id.String())
		}
		if !s.Approved {
			return newError(CodeThresholdNotMet, "approval threshold not met",
				"session_id", id.String(), "approvals", strconv.Itoa(s.ApprovalCount))
		}

		var active SessionID
		err = kvstore.GetJSON(tx, activeSessionKey(s.Account), &active)
		switch {
		case err == nil && active == id:
			if err := tx.Delete(activeSessionKey(s.Account)); err != nil {
				return err
			}
		case err != nil && !errors.Is(err, kvstore.ErrNotFound):
			return err
		}

		s.Finalized = true
		s.FinalizedAt = now
		return kvstore.PutJSON(tx, sessionKey(id), s)
	})
	if err != nil {
		return Session{}, wrapStore("finalize", err)
	}

	r.metrics.RecordEvent(observability.EventFinalized)
	slog.InfoContext(ctx, "recovery finalized",
		"session_id", id, "account", s.Account, "proposed_key", identity.Fingerprint(s.ProposedKey))
	return s, nil
}

// ActiveSession returns the account's unfinalized session, if any.
func (r *Recovery) ActiveSession(ctx context.Context, account Account) (id SessionID, ok bool, err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "guardian.active_session", attribute.String("account", string(account)))
	defer func() { r.end(op, err) }()

	err = r.store.View(ctx, func(rd kvstore.Reader) error {
		err := kvstore.GetJSON(rd, activeSessionKey(account), &id)
		if errors.Is(err, kvstore.ErrNotFound) {
			id, ok = 0, false
			return nil
		}
		ok = err == nil
		return err
	})
	if err != nil {
		return 0, false, wrapStore("active session", err)
	}
	return id, ok, nil
}
