package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt is returned when the backing data of a namespace cannot be
	// decoded. Clear recovers from it.
	ErrCorrupt = errors.New("namespace data is corrupt")
)

// Store is a namespaced key/value store holding opaque string records.
// Each Store value is bound to a single namespace.
type Store interface {
	// Namespace returns the namespace this store reads and writes.
	Namespace() string
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Put overwrites the value stored under key.
	Put(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every key of the namespace.
	Clear(ctx context.Context) error
}
