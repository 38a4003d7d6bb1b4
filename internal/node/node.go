// Package node assembles the guardian service from configuration: the
// storage backend, the initiate policy and the registry/recovery pair.
package node

import (
	"context"
	"fmt"

	"github.com/gezibash/arc-guardian/internal/config"
	"github.com/gezibash/arc-guardian/internal/guardian"
	"github.com/gezibash/arc-guardian/internal/kvstore"
	"github.com/gezibash/arc-guardian/internal/observability"
	"github.com/gezibash/arc-guardian/internal/policy"

	// Register kvstore backends
	_ "github.com/gezibash/arc-guardian/internal/kvstore/badger"
	_ "github.com/gezibash/arc-guardian/internal/kvstore/memory"
	_ "github.com/gezibash/arc-guardian/internal/kvstore/redis"
	_ "github.com/gezibash/arc-guardian/internal/kvstore/sqlite"
)

// Node holds the wired guardian components. Close releases the store.
type Node struct {
	Store    kvstore.Backend
	Policy   *policy.Policy
	Registry *guardian.Registry
	Recovery *guardian.Recovery
}

// OpenStore creates the configured kvstore backend.
func OpenStore(ctx context.Context, cfg config.Config) (kvstore.Backend, error) {
	backend, err := kvstore.New(ctx, cfg.Storage.Backend, cfg.BackendConfig())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	return backend, nil
}

// New opens the store and builds the registry and recovery manager on it.
// metrics may be nil. Extra options are appended after the defaults.
func New(ctx context.Context, cfg config.Config, metrics *observability.Metrics, opts ...guardian.Option) (*Node, error) {
	pol, err := policy.Compile(cfg.Recovery.InitiatePolicy)
	if err != nil {
		return nil, fmt.Errorf("initiate policy: %w", err)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	all := append([]guardian.Option{
		guardian.WithMetrics(metrics),
		guardian.WithInitiateGuard(pol),
	}, opts...)

	return &Node{
		Store:    store,
		Policy:   pol,
		Registry: guardian.NewRegistry(store, all...),
		Recovery: guardian.NewRecovery(store, all...),
	}, nil
}

func (n *Node) Close() error {
	return n.Store.Close()
}
