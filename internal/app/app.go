// Package app wires the CRM core over one storage backend.
package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/config"
	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/identity"
	"github.com/celerix-dev/celerix-crm/internal/mutation"
	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/internal/stats"
	"github.com/celerix-dev/celerix-crm/internal/storage"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// App is the set of services the HTTP adapter and the CLI call into.
type App struct {
	KV          engine.Store
	Store       *partition.Store
	Identities  *identity.Resolver
	Companies   *identity.Companies
	Scopes      *scope.Resolver
	Coordinator *mutation.Coordinator
	Stats       *stats.Engine
}

// New builds the services over kv. A nil board uses the built-in reference leaderboard.
func New(kv engine.Store, board stats.Leaderboard, log *zap.SugaredLogger, opts ...mutation.Option) *App {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if board == nil {
		board = stats.DefaultLeaderboard()
	}
	store := partition.New(kv, log)
	ids := identity.NewResolver(store, log)
	return &App{
		KV:          kv,
		Store:       store,
		Identities:  ids,
		Companies:   identity.NewCompanies(store),
		Scopes:      scope.NewResolver(ids),
		Coordinator: mutation.New(store, log, opts...),
		Stats:       stats.NewEngine(store, ids, board, log),
	}
}

// Session resolves p and computes its scope.
func (a *App) Session(p schema.Principal) (schema.Identity, scope.Scope, error) {
	id, err := a.Identities.Resolve(p)
	if err != nil {
		return schema.Identity{}, scope.Scope{}, err
	}
	sc, err := a.Scopes.Resolve(id)
	if err != nil {
		return schema.Identity{}, scope.Scope{}, err
	}
	return id, sc, nil
}

// Close releases the storage backend.
func (a *App) Close() error {
	return a.KV.Close()
}

// Open connects the backend selected by cfg and builds the services over it.
func Open(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	var board stats.Leaderboard
	if cfg.LeaderboardFile != "" {
		b, err := stats.LoadLeaderboard(cfg.LeaderboardFile)
		if err != nil {
			return nil, err
		}
		board = b
	}
	kv, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return New(kv, board, log), nil
}
