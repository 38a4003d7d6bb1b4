package guardian

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/observability"
)

// Registry stores each account's guardian set and threshold.
type Registry struct {
	base
}

// NewRegistry creates a Registry over store.
func NewRegistry(store kvstore.Backend, opts ...Option) *Registry {
	return &Registry{base: base{store: store, options: buildOptions(opts)}}
}

// Register records guardians and threshold for account. Only the account
// itself may register, and only once.
func (r *Registry) Register(ctx context.Context, caller, account Account, guardians []Account, threshold int) (err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "guardian.register",
		attribute.String("account", string(account)),
		attribute.Int("guardians", len(guardians)),
		attribute.Int("threshold", threshold),
	)
	defer func() { r.end(op, err) }()

	if err := CheckOwner(caller, account); err != nil {
		return err
	}
	if err := validateGuardians(guardians); err != nil {
		return err
	}
	if threshold < 1 || threshold > len(guardians) {
		return newError(CodeInvalidThreshold,
			fmt.Sprintf("threshold %d outside 1..%d", threshold, len(guardians)),
			"threshold", strconv.Itoa(threshold), "guardians", strconv.Itoa(len(guardians)))
	}

	gs := GuardianSet{
		Account:      account,
		Guardians:    slices.Clone(guardians),
		Threshold:    threshold,
		Initialized:  true,
		RegisteredAt: r.timestamp(),
	}
	err = r.store.Update(ctx, func(tx kvstore.Txn) error {
		exists, err := kvstore.Exists(tx, guardianSetKey(account))
		if err != nil {
			return err
		}
		if exists {
			return newError(CodeAlreadyInitialized, "guardians already initialized", "account", string(account))
		}
		return kvstore.PutJSON(tx, guardianSetKey(account), gs)
	})
	if err != nil {
		return wrapStore("register", err)
	}

	r.metrics.RecordEvent(observability.EventRegistered)
	slog.InfoContext(ctx, "guardians registered", "account", account, "guardians", len(guardians), "threshold", threshold)
	return nil
}

// CheckOwner returns ErrNotOwner unless caller is a non-empty account equal
// to account.
func CheckOwner(caller, account Account) error {
	if caller == "" || caller != account {
		return newError(CodeNotOwner, "caller is not the account owner", "account", string(account), "caller", string(caller))
	}
	return nil
}

func validateGuardians(guardians []Account) error {
	if len(guardians) < MinGuardians {
		return newError(CodeInvalidGuardianSet,
			fmt.Sprintf("need at least %d guardians, got %d", MinGuardians, len(guardians)),
			"guardians", strconv.Itoa(len(guardians)))
	}
	seen := make(map[Account]struct{}, len(guardians))
	for i, g := range guardians {
		if g == "" {
			return newError(CodeInvalidGuardianSet, fmt.Sprintf("guardian %d is empty", i), "index", strconv.Itoa(i))
		}
		if _, dup := seen[g]; dup {
			return newError(CodeInvalidGuardianSet, fmt.Sprintf("guardian %s listed twice", g), "guardian", string(g))
		}
		seen[g] = struct{}{}
	}
	return nil
}

// Lookup returns the guardian set for account, or ErrNotInitialized.
func (r *Registry) Lookup(ctx context.Context, account Account) (gs GuardianSet, err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "guardian.lookup", attribute.String("account", string(account)))
	defer func() { r.end(op, err) }()

	err = r.store.View(ctx, func(rd kvstore.Reader) error {
		var err error
		gs, err = loadGuardianSet(rd, account)
		return err
	})
	if err != nil {
		return GuardianSet{}, wrapStore("lookup", err)
	}
	return gs, nil
}

// Guardians returns the registered guardians in registration order.
func (r *Registry) Guardians(ctx context.Context, account Account) ([]Account, error) {
	gs, err := r.Lookup(ctx, account)
	if err != nil {
		return nil, err
	}
	return gs.Guardians, nil
}

// Threshold returns the registered approval threshold.
func (r *Registry) Threshold(ctx context.Context, account Account) (int, error) {
	gs, err := r.Lookup(ctx, account)
	if err != nil {
		return 0, err
	}
	return gs.Threshold, nil
}

// HasGuardians reports whether account has registered guardians. An
// unknown account is not an error.
func (r *Registry) HasGuardians(ctx context.Context, account Account) (has bool, err error) {
	op, ctx := observability.StartOperation(ctx, r.metrics, "guardian.has_guardians", attribute.String("account", string(account)))
	defer func() { r.end(op, err) }()

	err = r.store.View(ctx, func(rd kvstore.Reader) error {
		_, err := loadGuardianSet(rd, account)
		if GetCode(err) == CodeNotInitialized {
			return nil
		}
		has = err == nil
		return err
	})
	if err != nil {
		return false, wrapStore("has guardians", err)
	}
	return has, nil
}

// wrapStore passes domain errors through and annotates everything else.
func wrapStore(op string, err error) error {
	if GetCode(err) != CodeUnknown {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
