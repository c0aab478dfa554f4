package frame

import (
	"context"
	"errors"
	"fmt"

	"github.com/cairn-io/cairn/internal/metadata"
)

// Key layout for the KV-backed frame store:
//
//	tree/frame/<id>  -> frame JSON
//	tree/active/<id> -> empty marker while the frame is active
const (
	framePrefix  = "tree/frame/"
	activePrefix = "tree/active/"

	// Exclusive range ends: "/" + 1 == "0", so these sort immediately
	// after every key under the corresponding prefix.
	frameRangeEnd  = "tree/frame0"
	activeRangeEnd = "tree/active0"
)

// activeScanLimit bounds one page of the active marker scan.
const activeScanLimit = 1000

// KVStore implements Store over a metadata key-value store. Active
// frames carry a marker key so protection checks only walk the ancestor
// chains of currently active frames instead of the whole tree.
type KVStore struct {
	store metadata.Store
}

// NewKVStore creates a frame store over the given KV store.
func NewKVStore(store metadata.Store) *KVStore {
	return &KVStore{store: store}
}

// PutFrame inserts or replaces a frame and maintains its active marker.
// Exposed for the session layer that owns frame lifecycle.
func (s *KVStore) PutFrame(ctx context.Context, f *Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, framePrefix+f.ID, data); err != nil {
		return fmt.Errorf("frame: put %s: %w", f.ID, err)
	}

	if f.State == StateActive {
		if err := s.store.Put(ctx, activePrefix+f.ID, nil); err != nil {
			return fmt.Errorf("frame: put active marker %s: %w", f.ID, err)
		}
		return nil
	}
	if err := s.store.Delete(ctx, activePrefix+f.ID); err != nil {
		return fmt.Errorf("frame: clear active marker %s: %w", f.ID, err)
	}
	return nil
}

// CloseFrame transitions a frame to the closed state.
func (s *KVStore) CloseFrame(ctx context.Context, id string) error {
	f, err := s.GetFrame(ctx, id)
	if err != nil {
		return err
	}
	f.State = StateClosed
	return s.PutFrame(ctx, f)
}

func (s *KVStore) GetFrame(ctx context.Context, id string) (*Frame, error) {
	res, err := s.store.Get(ctx, framePrefix+id)
	if err != nil {
		return nil, fmt.Errorf("frame: get %s: %w", id, err)
	}
	if !res.Exists {
		return nil, ErrFrameNotFound
	}
	return Decode(res.Value)
}

func (s *KVStore) ListFrames(ctx context.Context, filter ListFilter) ([]*Frame, error) {
	// Page through the frame keyspace; keys sort by frame ID, which
	// gives the cursor its ordering guarantee.
	start := framePrefix
	if filter.AfterID != "" {
		start = framePrefix + filter.AfterID + "\x00"
	}

	var out []*Frame
	pageSize := filter.Limit
	if pageSize <= 0 {
		pageSize = activeScanLimit
	}

	for {
		kvs, err := s.store.List(ctx, start, frameRangeEnd, pageSize)
		if err != nil {
			return nil, fmt.Errorf("frame: list: %w", err)
		}
		if len(kvs) == 0 {
			return out, nil
		}

		for _, kv := range kvs {
			f, err := Decode(kv.Value)
			if err != nil {
				return nil, err
			}
			if filter.State != "" && f.State != filter.State {
				continue
			}
			out = append(out, f)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return out, nil
			}
		}

		if len(kvs) < pageSize {
			return out, nil
		}
		start = kvs[len(kvs)-1].Key + "\x00"
	}
}

func (s *KVStore) Count(ctx context.Context) (int, error) {
	count := 0
	start := framePrefix
	for {
		kvs, err := s.store.List(ctx, start, frameRangeEnd, activeScanLimit)
		if err != nil {
			return 0, fmt.Errorf("frame: count: %w", err)
		}
		count += len(kvs)
		if len(kvs) < activeScanLimit {
			return count, nil
		}
		start = kvs[len(kvs)-1].Key + "\x00"
	}
}

// IsProtected reports whether the frame is active or an ancestor of an
// active frame.
func (s *KVStore) IsProtected(ctx context.Context, id string) (bool, error) {
	f, err := s.GetFrame(ctx, id)
	if err != nil {
		return false, err
	}
	if f.State == StateActive {
		return true, nil
	}

	start := activePrefix
	for {
		kvs, err := s.store.List(ctx, start, activeRangeEnd, activeScanLimit)
		if err != nil {
			return false, fmt.Errorf("frame: scan active markers: %w", err)
		}
		for _, kv := range kvs {
			activeID := kv.Key[len(activePrefix):]
			onChain, err := s.onAncestorChain(ctx, activeID, id)
			if err != nil {
				return false, err
			}
			if onChain {
				return true, nil
			}
		}
		if len(kvs) < activeScanLimit {
			return false, nil
		}
		start = kvs[len(kvs)-1].Key + "\x00"
	}
}

// onAncestorChain reports whether ancestorID appears on descendantID's
// parent chain.
func (s *KVStore) onAncestorChain(ctx context.Context, descendantID, ancestorID string) (bool, error) {
	cur, err := s.GetFrame(ctx, descendantID)
	if err != nil {
		return false, err
	}
	for cur.ParentID != "" {
		if cur.ParentID == ancestorID {
			return true, nil
		}
		cur, err = s.GetFrame(ctx, cur.ParentID)
		if err != nil {
			// A dangling parent pointer ends the chain.
			if errors.Is(err, ErrFrameNotFound) {
				return false, nil
			}
			return false, err
		}
	}
	return false, nil
}

func (s *KVStore) MarkCollected(ctx context.Context, id string) error {
	f, err := s.GetFrame(ctx, id)
	if err != nil {
		return err
	}
	f.Collected = true
	f.Outputs = nil
	f.Metadata = nil
	return s.PutFrame(ctx, f)
}
