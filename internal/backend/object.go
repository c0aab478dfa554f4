package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cairn-io/cairn/internal/objectstore"
	"github.com/cairn-io/cairn/internal/tier"
)

// ObjectAdapter serves the old and remote tiers from object storage.
// The remote tier sets an archive storage class on writes so the
// provider ages the object onto cheaper media.
type ObjectAdapter struct {
	store        objectstore.Store
	tier         tier.Tier
	storageClass string
}

// NewObjectAdapter creates an old tier adapter over the given store.
// A nil store yields an unavailable adapter.
func NewObjectAdapter(store objectstore.Store) *ObjectAdapter {
	return &ObjectAdapter{store: store, tier: tier.Old}
}

// NewArchiveAdapter creates a remote tier adapter writing with the given
// storage class (e.g. "GLACIER", "DEEP_ARCHIVE").
func NewArchiveAdapter(store objectstore.Store, storageClass string) *ObjectAdapter {
	return &ObjectAdapter{store: store, tier: tier.Remote, storageClass: storageClass}
}

func (a *ObjectAdapter) Tier() tier.Tier { return a.tier }

func (a *ObjectAdapter) Available() bool { return a.store != nil }

func (a *ObjectAdapter) key(key string) string {
	return fmt.Sprintf("frames/%s/%s", a.tier, key)
}

func (a *ObjectAdapter) Put(ctx context.Context, key string, payload []byte) error {
	if a.store == nil {
		return ErrUnavailable
	}

	opts := objectstore.PutOptions{StorageClass: a.storageClass}
	err := a.store.Put(ctx, a.key(key), bytes.NewReader(payload), int64(len(payload)), opts)
	if err != nil {
		return fmt.Errorf("backend: %s put %q: %w", a.tier, key, err)
	}
	return nil
}

func (a *ObjectAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	if a.store == nil {
		return nil, ErrUnavailable
	}

	rc, err := a.store.Get(ctx, a.key(key))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("backend: %s get %q: %w", a.tier, key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("backend: %s read %q: %w", a.tier, key, err)
	}
	return data, nil
}

func (a *ObjectAdapter) Delete(ctx context.Context, key string) error {
	if a.store == nil {
		return ErrUnavailable
	}

	if err := a.store.Delete(ctx, a.key(key)); err != nil {
		return fmt.Errorf("backend: %s delete %q: %w", a.tier, key, err)
	}
	return nil
}
