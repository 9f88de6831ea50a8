// Package engine defines the key/value contract every partition backend satisfies
// and ships the in-memory and JSON-file implementations.
package engine

import (
	"errors"
	"strings"
)

var (
	// ErrKeyNotFound is returned when a key holds no value.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidKey is returned for keys that cannot be rendered or parsed.
	ErrInvalidKey = errors.New("invalid key")
)

// Kind is the entity kind half of a key ("prospects", "profile", ...).
type Kind string

// Key addresses one persisted value. An empty Partition addresses a
// kind-wide value such as the profile index.
type Key struct {
	Kind      Kind
	Partition string
}

// String renders the logical key: "prospects:<ownerId>" or "profile-index".
func (k Key) String() string {
	if k.Partition == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + k.Partition
}

// Valid reports whether the key can be stored.
func (k Key) Valid() bool {
	return k.Kind != "" && !strings.Contains(string(k.Kind), ":")
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, ErrInvalidKey
	}
	kind, partition, _ := strings.Cut(s, ":")
	k := Key{Kind: Kind(kind), Partition: partition}
	if !k.Valid() {
		return Key{}, ErrInvalidKey
	}
	return k, nil
}

// Entry is one write of a batch. A nil Value deletes the key.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the persistence substrate. Values are opaque bytes; parsing and
// corruption handling belong to the caller.
type Store interface {
	// Get returns the raw value or ErrKeyNotFound.
	Get(key Key) ([]byte, error)
	// Commit applies every entry or none of them.
	Commit(entries []Entry) error
	// Keys lists the stored keys of one kind, or of every kind when kind is empty.
	Keys(kind Kind) ([]Key, error)
	// Close releases backend resources.
	Close() error
}
