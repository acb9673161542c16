// Package registry provides a process-wide (or, via the Redis backend,
// fleet-wide) mapping from a user-chosen session identifier to a running
// session handle, so SendMessage and Stop can be issued from any goroutine
// without holding a direct handle. See spec §4.6.
package registry

import "errors"

// ErrAlreadyRegistered is returned by Insert when key is already occupied.
var ErrAlreadyRegistered = errors.New("registry: session key already registered")

// ErrNotFound is returned by Lookup when key has no entry.
var ErrNotFound = errors.New("registry: session key not found")

// Registry is a concurrency-safe insert-unique map from session key to a
// handle (opaque to the registry itself). Implementations must guarantee
// at most one registration per key at a time.
type Registry interface {
	// Insert registers handle under key. It returns ErrAlreadyRegistered if
	// key is already occupied.
	Insert(key string, handle any) error
	// Lookup returns the handle registered under key, or ErrNotFound.
	Lookup(key string) (any, error)
	// Delete removes key's registration, if any. Deleting an absent key is
	// not an error.
	Delete(key string) error
}
