// Package partition turns the raw key/value engine into typed, per-owner
// collections and groups multi-partition writes into one transaction.
package partition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/metrics"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// Entity kinds. Each maps to the key prefixes of the persisted layout.
const (
	KindProfile       engine.Kind = "profile"
	KindProfileIndex  engine.Kind = "profile-index"
	KindCompany       engine.Kind = "company"
	KindProspects     engine.Kind = "prospects"
	KindActivities    engine.Kind = "activities"
	KindOpportunities engine.Kind = "opportunities"
	// KindQuarantine keeps corrupt values that a commit would otherwise overwrite.
	KindQuarantine engine.Kind = "quarantine"
)

// Store is the typed view over an engine.Store.
type Store struct {
	kv  engine.Store
	log *zap.SugaredLogger
	now func() time.Time

	mu      sync.Mutex
	corrupt map[engine.Key][]byte
}

// New wraps kv. A nil logger discards output.
func New(kv engine.Store, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		kv:      kv,
		log:     log.Named("partition"),
		now:     time.Now,
		corrupt: make(map[engine.Key][]byte),
	}
}

// Engine exposes the underlying store for migrations and diagnostics.
func (s *Store) Engine() engine.Store {
	return s.kv
}

// read returns the raw value, nil when absent.
func (s *Store) read(key engine.Key) ([]byte, error) {
	raw, err := s.kv.Get(key)
	if errors.Is(err, engine.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return raw, nil
}

func (s *Store) markCorrupt(key engine.Key, raw []byte, cause error) {
	s.mu.Lock()
	s.corrupt[key] = raw
	s.mu.Unlock()
	metrics.ObserveCorrupt(string(key.Kind))
	s.log.Warnw("partition does not parse, reading it as empty", "key", key.String(), "error", cause)
}

func (s *Store) markClean(key engine.Key) {
	s.mu.Lock()
	delete(s.corrupt, key)
	s.mu.Unlock()
}

// Load reads one partition. A missing or malformed value yields an empty,
// non-nil slice; only backend failures are returned as errors.
func Load[T any](s *Store, kind engine.Kind, partition string) ([]T, error) {
	key := engine.Key{Kind: kind, Partition: partition}
	raw, err := s.read(key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []T{}, nil
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		s.markCorrupt(key, raw, err)
		return []T{}, nil
	}
	s.markClean(key)
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Get reads a single-record key such as "profile:<id>". Missing and
// malformed values both report ok == false.
func Get[T any](s *Store, kind engine.Kind, partition string) (v T, ok bool, err error) {
	key := engine.Key{Kind: kind, Partition: partition}
	raw, err := s.read(key)
	if err != nil || raw == nil {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		s.markCorrupt(key, raw, err)
		var zero T
		return zero, false, nil
	}
	s.markClean(key)
	return v, true, nil
}

// Save replaces a whole partition with items.
func Save[T any](s *Store, kind engine.Kind, partition string, items []T) error {
	tx := s.Begin()
	if err := StageList(tx, kind, partition, items); err != nil {
		return err
	}
	return tx.Commit()
}

// Put replaces a single-record key.
func (s *Store) Put(kind engine.Kind, partition string, v any) error {
	tx := s.Begin()
	if err := tx.Stage(kind, partition, v); err != nil {
		return err
	}
	return tx.Commit()
}

// wellFormed reports whether raw decodes into the shape kind is stored as:
// a list of objects for collections, an object for single records.
func wellFormed(kind engine.Kind, raw []byte) bool {
	switch kind {
	case KindProfileIndex, KindProspects, KindActivities, KindOpportunities:
		var list []map[string]json.RawMessage
		return json.Unmarshal(raw, &list) == nil
	case KindProfile, KindCompany:
		var obj map[string]json.RawMessage
		return json.Unmarshal(raw, &obj) == nil
	}
	return json.Valid(raw)
}

// Verify reports ErrStoreCorrupt when the stored value is not JSON of the
// shape its kind expects. A missing value is fine.
func (s *Store) Verify(key engine.Key) error {
	raw, err := s.read(key)
	if err != nil {
		return err
	}
	if raw != nil && !wellFormed(key.Kind, raw) {
		return fmt.Errorf("%w: %s", schema.ErrStoreCorrupt, key)
	}
	return nil
}

// Scan lists every non-quarantined key whose value fails Verify.
func (s *Store) Scan() ([]engine.Key, error) {
	keys, err := s.kv.Keys("")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	var bad []engine.Key
	for _, k := range keys {
		if k.Kind == KindQuarantine {
			continue
		}
		if err := s.Verify(k); errors.Is(err, schema.ErrStoreCorrupt) {
			bad = append(bad, k)
		} else if err != nil {
			return nil, err
		}
	}
	return bad, nil
}

// Tx buffers partition contents and writes them in a single engine commit:
// every partition of a mutation lands, or none does.
type Tx struct {
	s      *Store
	staged map[engine.Key][]byte
	order  []engine.Key
}

// Begin starts an empty transaction.
func (s *Store) Begin() *Tx {
	return &Tx{s: s, staged: make(map[engine.Key][]byte)}
}

// Stage buffers a single value. Marshalling happens now, so an unencodable
// value fails the transaction before anything is written.
func (tx *Tx) Stage(kind engine.Kind, partition string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s:%s: %w", kind, partition, err)
	}
	tx.put(engine.Key{Kind: kind, Partition: partition}, raw)
	return nil
}

// StageList buffers a complete partition. A nil slice is stored as [].
func StageList[T any](tx *Tx, kind engine.Kind, partition string, items []T) error {
	if items == nil {
		items = []T{}
	}
	return tx.Stage(kind, partition, items)
}

func (tx *Tx) put(key engine.Key, raw []byte) {
	if _, seen := tx.staged[key]; !seen {
		tx.order = append(tx.order, key)
	}
	tx.staged[key] = raw
}

// Len is the number of staged keys.
func (tx *Tx) Len() int {
	return len(tx.order)
}

// Commit writes everything staged. Values previously read as corrupt are
// copied to a quarantine key in the same commit instead of being lost.
func (tx *Tx) Commit() error {
	if len(tx.order) == 0 {
		return nil
	}

	entries := make([]engine.Entry, 0, len(tx.order))
	var quarantined []engine.Key
	stamp := strconv.FormatInt(tx.s.now().UnixNano(), 10)
	for _, key := range tx.order {
		prev, err := tx.s.corruptValue(key)
		if err != nil {
			return err
		}
		if prev != nil {
			entries = append(entries, engine.Entry{
				Key:   engine.Key{Kind: KindQuarantine, Partition: key.String() + "@" + stamp},
				Value: prev,
			})
			quarantined = append(quarantined, key)
		}
		entries = append(entries, engine.Entry{Key: key, Value: tx.staged[key]})
	}

	err := tx.s.kv.Commit(entries)
	metrics.ObserveCommit(len(entries), err)
	if err != nil {
		return fmt.Errorf("commit %d partitions: %w", len(tx.order), err)
	}
	for _, key := range quarantined {
		tx.s.log.Warnw("corrupt partition quarantined before overwrite", "key", key.String())
		tx.s.markClean(key)
	}
	return nil
}

// corruptValue returns the stored bytes of key when they are known or found to be corrupt.
func (s *Store) corruptValue(key engine.Key) ([]byte, error) {
	s.mu.Lock()
	raw, known := s.corrupt[key]
	s.mu.Unlock()
	if known {
		return raw, nil
	}
	cur, err := s.read(key)
	if err != nil {
		return nil, err
	}
	if cur != nil && !wellFormed(key.Kind, cur) {
		return cur, nil
	}
	return nil, nil
}
