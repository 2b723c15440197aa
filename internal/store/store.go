// Package store provides the durable key-value storage behind the pairing
// layer. The bridge never depends on a concrete storage API; everything goes
// through KV so tests and platforms can swap backends.
package store

import "errors"

// ErrNotFound is returned by Get for keys that were never written or were
// removed.
var ErrNotFound = errors.New("store: key not found")

// KV is a flat, durable string-to-string store. Implementations must be safe
// for concurrent use; mutating calls must be written through before they
// return.
type KV interface {
	Get(key string) (string, error)
	Put(key, value string) error
	Remove(key string) error

	// Keys returns every stored key beginning with prefix, in no
	// particular order.
	Keys(prefix string) ([]string, error)

	Close() error
}
