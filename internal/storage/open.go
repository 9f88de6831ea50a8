// Package storage picks the partition backend described by the configuration.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/config"
	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/storage/badger"
	"github.com/celerix-dev/celerix-crm/internal/storage/postgres"
	"github.com/celerix-dev/celerix-crm/internal/vault"
)

// Open initializes the store selected by cfg.StoreBackend.
// It returns the interface, so callers don't care which backend is behind it.
func Open(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (engine.Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return engine.NewMemStore(nil, nil), nil

	case config.BackendFile:
		p, err := engine.NewPersistence(cfg.DataDir, log)
		if err != nil {
			return nil, fmt.Errorf("init persistence: %w", err)
		}
		if cfg.EncryptionKey != "" {
			box, err := vault.OpenBox(cfg.DataDir, cfg.EncryptionKey)
			if err != nil {
				return nil, fmt.Errorf("open vault: %w", err)
			}
			p.WithSealer(box)
		}
		allData, err := p.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load data: %w", err)
		}
		log.Infow("file store loaded", "dir", cfg.DataDir, "keys", len(allData), "encrypted", cfg.EncryptionKey != "")
		return engine.NewMemStore(allData, p), nil

	case config.BackendBadger:
		bc := badger.DefaultConfig(cfg.DataDir)
		bc.Logger = log
		s, err := badger.Open(bc)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.DBQueryTimeout, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
