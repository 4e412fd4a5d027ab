// Package resume provides the persistent key→value cache that lets a
// re-run of the extraction engine skip HTTP requests for expressions it
// has already resolved (the ResumeStore external collaborator, spec §6).
package resume

import "context"

// Store is a persistent key→value cache keyed by the exact expression
// text. A null value is distinct from an empty string: Get returns
// (value, true) only for a present entry, with value == "" meaning the
// expression resolved to an empty string, not "not cached".
type Store interface {
	// Get returns the cached value for key and true, or ("", false) if no
	// entry exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores value under key, overwriting any existing entry.
	Put(ctx context.Context, key, value string) error

	// Close releases the underlying resources.
	Close() error
}
