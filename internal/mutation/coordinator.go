// Package mutation applies writes on behalf of an identity while keeping
// every record in the partition of its owner.
package mutation

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/partition"
	"github.com/celerix-dev/celerix-crm/internal/scope"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Coordinator serializes mutations and commits each one as a single transaction.
type Coordinator struct {
	store *partition.Store
	log   *zap.SugaredLogger
	now   func() time.Time
	newID func() (string, error)

	mu sync.Mutex
}

type Option func(*Coordinator)

// WithClock sets the clock used for createdAt and completedDate.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator replaces the time-ordered UUID generator.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(c *Coordinator) { c.newID = gen }
}

func New(store *partition.Store, log *zap.SugaredLogger, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Coordinator{
		store: store,
		log:   log.Named("mutation"),
		now:   time.Now,
		newID: newUUID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (c *Coordinator) timestamp() time.Time {
	return c.now().UTC()
}

// authorize allows the actor's own records and, for a company admin, those
// of the assessors in scope.
func authorize(sc scope.Scope, ownerID string) error {
	if ownerID == sc.ActorID() {
		return nil
	}
	if sc.Admin && sc.Covers(ownerID) {
		return nil
	}
	return fmt.Errorf("%w: %s may not modify records of %s", schema.ErrPermissionDenied, sc.ActorID(), ownerID)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", schema.ErrNotFound, kind, id)
}

// claimID returns the id for a new record. A client-supplied id is kept
// unless a record of the same kind outside the caller's scope already holds it.
func claimID[T schema.Record](c *Coordinator, sc scope.Scope, kind engine.Kind, requested string) (string, error) {
	if requested == "" {
		return c.newID()
	}
	keys, err := c.store.Engine().Keys(kind)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", kind, err)
	}
	for _, k := range keys {
		recs, err := partition.Load[T](c.store, kind, k.Partition)
		if err != nil {
			return "", err
		}
		for _, r := range recs {
			if r.RecordID() == requested {
				return "", fmt.Errorf("%w: %s id %s is taken", schema.ErrPermissionDenied, kind, requested)
			}
		}
	}
	c.log.Debugw("keeping client id", "kind", string(kind), "id", requested, "actor", sc.ActorID())
	return requested, nil
}

// located remembers which partition a record was read from.
type located[T schema.Record] struct {
	src string
	rec T
}

type working[T schema.Record] struct {
	snap *scope.Snapshot[T]
	recs []located[T]
}

func newWorking[T schema.Record](snap *scope.Snapshot[T]) *working[T] {
	w := &working[T]{snap: snap}
	for _, owner := range snap.Owners {
		for _, rec := range snap.Parts[owner] {
			w.recs = append(w.recs, located[T]{src: owner, rec: rec})
		}
	}
	return w
}

func (w *working[T]) find(id string) int {
	for i, l := range w.recs {
		if l.rec.RecordID() == id {
			return i
		}
	}
	return -1
}

func (w *working[T]) remove(i int) {
	w.recs = append(w.recs[:i], w.recs[i+1:]...)
}

// stage groups the working set by owner and stages every loaded partition
// whose contents changed. A record whose owner's partition is not loaded
// stays where it was read from.
func (w *working[T]) stage(tx *partition.Tx) ([]string, error) {
	next := make(map[string][]T, len(w.snap.Owners))
	for _, owner := range w.snap.Owners {
		next[owner] = []T{}
	}
	for _, l := range w.recs {
		dst := l.rec.RecordOwner()
		if !w.snap.Loaded(dst) {
			dst = l.src
		}
		next[dst] = append(next[dst], l.rec)
	}

	var changed []string
	for _, owner := range w.snap.Owners {
		if reflect.DeepEqual(next[owner], w.snap.Parts[owner]) {
			continue
		}
		if err := partition.StageList(tx, w.snap.Kind, owner, next[owner]); err != nil {
			return nil, err
		}
		changed = append(changed, owner)
	}
	return changed, nil
}

// commit stages and writes the working set in one transaction.
func (c *Coordinator) commit(op string, sc scope.Scope, sets ...stager) error {
	tx := c.store.Begin()
	var changed []string
	for _, s := range sets {
		owners, err := s.stage(tx)
		if err != nil {
			return err
		}
		changed = append(changed, owners...)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.log.Debugw("mutation committed", "op", op, "actor", sc.ActorID(), "partitions", changed)
	return nil
}

type stager interface {
	stage(tx *partition.Tx) ([]string, error)
}
