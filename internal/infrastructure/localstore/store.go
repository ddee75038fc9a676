package localstore

import "errors"

// ErrUnavailable indicates the underlying storage cannot be read or written.
// Callers are expected to keep working with in-memory state and surface a warning.
var ErrUnavailable = errors.New("local storage unavailable")

// Store is a key/value store for visitor-local state (cart, applied coupon session).
// Values are opaque JSON blobs; each key holds one document.
type Store interface {
	// Get returns the value for key, and whether it exists.
	Get(key string) ([]byte, bool, error)

	// Set stores the value for key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes the value for key. Deleting an absent key is not an error.
	Delete(key string) error
}
