package engine

import (
	"fmt"
	"sort"
	"sync"
)

// MemStore keeps every value in memory and, when a Persistence is attached,
// mirrors each committed batch to disk before it becomes visible.
type MemStore struct {
	mu        sync.RWMutex
	data      map[Key][]byte
	persister *Persistence
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(initialData map[Key][]byte, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[Key][]byte)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
	}
}

func (m *MemStore) Get(key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	// Return a copy to prevent external mutation of the internal slice
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MemStore) Commit(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if !e.Key.Valid() {
			return fmt.Errorf("commit %q: %w", e.Key.String(), ErrInvalidKey)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Disk first: a failed write must leave the in-memory view untouched.
	if m.persister != nil {
		if err := m.persister.SaveBatch(entries); err != nil {
			return fmt.Errorf("persist batch: %w", err)
		}
	}

	for _, e := range entries {
		if e.Value == nil {
			delete(m.data, e.Key)
			continue
		}
		val := make([]byte, len(e.Value))
		copy(val, e.Value)
		m.data[e.Key] = val
	}
	return nil
}

func (m *MemStore) Keys(kind Kind) ([]Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []Key
	for k := range m.data {
		if kind == "" || k.Kind == kind {
			list = append(list, k)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].String() < list[j].String() })
	return list, nil
}

// Close is a no-op; every commit is already on disk.
func (m *MemStore) Close() error {
	return nil
}

// Len reports the number of stored keys.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
