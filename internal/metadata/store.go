// Package metadata defines the key-value Store interface used by the
// young and mature storage tiers. The default implementation uses Oxia.
package metadata

import (
	"context"
	"errors"
)

// Common errors returned by Store implementations.
var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("metadata: key not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("metadata: store closed")
)

// KV represents a key-value pair.
type KV struct {
	Key   string
	Value []byte
}

// GetResult is the result of a Get operation.
type GetResult struct {
	Value  []byte
	Exists bool
}

// Store is a key-value store with prefix listing.
//
// Thread Safety: implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value by key. A missing key is not an error:
	// the result reports Exists=false.
	Get(ctx context.Context, key string) (GetResult, error)

	// Put stores a value at key, overwriting any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key succeeds silently.
	Delete(ctx context.Context, key string) error

	// List returns key-value pairs in [startKey, endKey), in key order.
	// An empty endKey means "every key with prefix startKey".
	// limit <= 0 means no limit.
	List(ctx context.Context, startKey, endKey string, limit int) ([]KV, error)

	// Close releases resources associated with the store.
	Close() error
}
