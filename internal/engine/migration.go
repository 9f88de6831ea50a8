package engine

import "fmt"

// Migrate copies every key from a source store into a destination store.
// This works for:
// - File -> Badger/Postgres (the "upgrade")
// - Badger/Postgres -> File (the "backup/offline")
//
// The copy lands in a single commit, so the destination either receives the
// whole snapshot or nothing. It returns the number of keys copied.
func Migrate(src Store, dst Store) (int, error) {
	// 1. List every key in the source
	keys, err := src.Keys("")
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}

	// 2. Read each value
	batch := make([]Entry, 0, len(keys))
	for _, k := range keys {
		val, err := src.Get(k)
		if err != nil {
			return 0, fmt.Errorf("failed to read key %s: %w", k, err)
		}
		batch = append(batch, Entry{Key: k, Value: val})
	}

	// 3. Push everything into the destination
	if err := dst.Commit(batch); err != nil {
		return 0, fmt.Errorf("failed to write destination: %w", err)
	}
	return len(batch), nil
}
