// Package objectstore defines the Store interface for S3-compatible storage.
//
// The old and remote tiers keep their frame snapshots here. Both tiers
// share one bucket; the remote tier writes with an archive storage class
// so the provider ages the object onto cheaper media.
//
//	store, err := s3.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Put(ctx, "frames/old/f-1", bytes.NewReader(data), int64(len(data)), PutOptions{})
//
//	rc, err := store.Get(ctx, "frames/old/f-1")
//	if errors.Is(err, objectstore.ErrNotFound) {
//	    // frame has no object at this tier
//	}
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")
)

// ObjectError wraps an error with the operation and object key for context.
type ObjectError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectMeta contains metadata about a stored object.
type ObjectMeta struct {
	// Key is the object's key (path) in the bucket.
	Key string

	// Size is the object's size in bytes.
	Size int64

	// StorageClass is the provider storage class, if reported.
	StorageClass string

	// LastModified is the Unix timestamp (milliseconds) when the object
	// was last modified.
	LastModified int64
}

// PutOptions configures a Put operation.
type PutOptions struct {
	// StorageClass selects the provider storage class (e.g. "STANDARD",
	// "GLACIER", "DEEP_ARCHIVE"). Empty uses the bucket default.
	StorageClass string
}

// Store is the interface for object storage operations.
//
// All methods accept a context for cancellation and deadline propagation.
// Implementations wrap errors with [ObjectError] where appropriate.
//
// Thread Safety: implementations must be safe for concurrent use.
type Store interface {
	// Put stores an object at the given key. The size parameter must
	// match the total bytes that will be read from reader.
	Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error

	// Get retrieves an entire object. The caller must close the returned
	// ReadCloser. Returns ErrNotFound if the object does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head retrieves object metadata without the body.
	// Returns ErrNotFound if the object does not exist.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// Delete removes an object. Deleting a non-existent object succeeds
	// silently, which enables safe retries.
	Delete(ctx context.Context, key string) error

	// List returns objects matching the given prefix, in lexicographic
	// order by key.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Close releases resources associated with the store.
	Close() error
}
