package backend

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cairn-io/cairn/internal/metadata"
	"github.com/cairn-io/cairn/internal/tier"
)

// kvHeaderSize is the fixed envelope prefix: 8 bytes of big-endian
// write timestamp in milliseconds.
const kvHeaderSize = 8

// KVAdapter serves the mature tier from a key-value store, maintaining
// a secondary time index so payloads can be scanned in write order.
//
// Key layout:
//
//	frames/mature/id/<key>               -> envelope (writtenAtMs + payload)
//	frames/mature/ts/<writtenAtMs>-<key> -> empty marker
type KVAdapter struct {
	store metadata.Store
	now   func() time.Time
}

// NewKVAdapter creates a mature tier adapter over the given store.
// A nil store yields an unavailable adapter.
func NewKVAdapter(store metadata.Store) *KVAdapter {
	return &KVAdapter{store: store, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (a *KVAdapter) WithClock(now func() time.Time) *KVAdapter {
	a.now = now
	return a
}

func (a *KVAdapter) Tier() tier.Tier { return tier.Mature }

func (a *KVAdapter) Available() bool { return a.store != nil }

func idKey(key string) string {
	return "frames/mature/id/" + key
}

func tsKey(writtenAtMs int64, key string) string {
	return fmt.Sprintf("frames/mature/ts/%020d-%s", writtenAtMs, key)
}

func (a *KVAdapter) Put(ctx context.Context, key string, payload []byte) error {
	if a.store == nil {
		return ErrUnavailable
	}

	writtenAtMs := a.now().UnixMilli()
	envelope := make([]byte, kvHeaderSize+len(payload))
	binary.BigEndian.PutUint64(envelope, uint64(writtenAtMs))
	copy(envelope[kvHeaderSize:], payload)

	if err := a.store.Put(ctx, idKey(key), envelope); err != nil {
		return fmt.Errorf("backend: mature put %q: %w", key, err)
	}
	if err := a.store.Put(ctx, tsKey(writtenAtMs, key), nil); err != nil {
		return fmt.Errorf("backend: mature index put %q: %w", key, err)
	}
	return nil
}

func (a *KVAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	if a.store == nil {
		return nil, ErrUnavailable
	}

	res, err := a.store.Get(ctx, idKey(key))
	if err != nil {
		return nil, fmt.Errorf("backend: mature get %q: %w", key, err)
	}
	if !res.Exists {
		return nil, ErrNotFound
	}
	if len(res.Value) < kvHeaderSize {
		return nil, fmt.Errorf("backend: mature get %q: truncated envelope (%d bytes)", key, len(res.Value))
	}
	return res.Value[kvHeaderSize:], nil
}

func (a *KVAdapter) Delete(ctx context.Context, key string) error {
	if a.store == nil {
		return ErrUnavailable
	}

	res, err := a.store.Get(ctx, idKey(key))
	if err != nil {
		return fmt.Errorf("backend: mature delete %q: %w", key, err)
	}
	if !res.Exists {
		return nil
	}

	if len(res.Value) >= kvHeaderSize {
		writtenAtMs := int64(binary.BigEndian.Uint64(res.Value))
		if err := a.store.Delete(ctx, tsKey(writtenAtMs, key)); err != nil {
			return fmt.Errorf("backend: mature index delete %q: %w", key, err)
		}
	}
	if err := a.store.Delete(ctx, idKey(key)); err != nil {
		return fmt.Errorf("backend: mature delete %q: %w", key, err)
	}
	return nil
}
