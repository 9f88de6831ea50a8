// Package postgres stores partitions as rows of a single Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/engine"
)

const (
	getQuery    = `SELECT value FROM partitions WHERE kind = $1 AND partition_key = $2`
	upsertQuery = `INSERT INTO partitions (kind, partition_key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (kind, partition_key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deleteQuery  = `DELETE FROM partitions WHERE kind = $1 AND partition_key = $2`
	keysQuery    = `SELECT kind, partition_key FROM partitions ORDER BY kind, partition_key`
	keysByKindQ  = `SELECT kind, partition_key FROM partitions WHERE kind = $1 ORDER BY partition_key`
	defaultQuery = 3 * time.Second
)

// Store implements engine.Store with a pgx pool. Each engine commit runs in
// one database transaction.
type Store struct {
	baseCtx context.Context
	log     *zap.SugaredLogger
	db      *pgxpool.Pool
	timeout time.Duration
}

// Open applies migrations and connects a pool. The pool lives until Close.
func Open(ctx context.Context, dsn string, queryTimeout time.Duration, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if queryTimeout <= 0 {
		queryTimeout = defaultQuery
	}

	if err := Migrate(dsn, "up"); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pool: %w", err)
	}

	s := &Store{baseCtx: ctx, log: log.Named("store.postgres"), db: pool, timeout: queryTimeout}
	s.log.Infow("postgres ready", "max_conns", poolCfg.MaxConns)
	return s, nil
}

func (s *Store) Get(key engine.Key) ([]byte, error) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()

	var val []byte
	err := s.db.QueryRow(ctx, getQuery, string(key.Kind), key.Partition).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

func (s *Store) Commit(entries []engine.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if !e.Key.Valid() {
			return fmt.Errorf("commit %q: %w", e.Key.String(), engine.ErrInvalidKey)
		}
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			if e.Value == nil {
				batch.Queue(deleteQuery, string(e.Key.Kind), e.Key.Partition)
				continue
			}
			batch.Queue(upsertQuery, string(e.Key.Kind), e.Key.Partition, e.Value)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		s.log.Errorw("commit failed", "entries", len(entries), "error", err)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Keys(kind engine.Kind) ([]engine.Key, error) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()

	var (
		rows pgx.Rows
		err  error
	)
	if kind == "" {
		rows, err = s.db.Query(ctx, keysQuery)
	} else {
		rows, err = s.db.Query(ctx, keysByKindQ, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]engine.Key, 0)
	for rows.Next() {
		var k, p string
		if err := rows.Scan(&k, &p); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, engine.Key{Kind: engine.Kind(k), Partition: p})
	}
	return keys, rows.Err()
}

// Close releases the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}
