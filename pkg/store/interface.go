// Package store persists client-side state (the credential and other small
// values) across restarts.
package store

import "errors"

// KeyCredential is the fixed key the access credential is stored under.
const KeyCredential = "token"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// StateStore is a small durable key/value store. Implementations include the
// default SQLite store and an in-memory store for tests.
type StateStore interface {
	// Get returns the value for key. ok is false if the key is absent.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases the underlying storage.
	Close() error
}

// Compile-time checks.
var (
	_ StateStore = (*SQLiteStore)(nil)
	_ StateStore = (*MemoryStore)(nil)
)
