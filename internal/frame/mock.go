package frame

import (
	"context"
	"sort"
	"sync"
)

// MockStore implements Store in memory for testing.
// It is exported so that tests in other packages can use it.
type MockStore struct {
	mu        sync.RWMutex
	frames    map[string]*Frame
	protErr   map[string]error
	collected map[string]bool
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		frames:    make(map[string]*Frame),
		protErr:   make(map[string]error),
		collected: make(map[string]bool),
	}
}

// AddFrame inserts or replaces a frame.
func (m *MockStore) AddFrame(f *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.frames[f.ID] = &cp
}

// CloseFrame transitions a frame to the closed state.
func (m *MockStore) CloseFrame(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.frames[id]; ok {
		f.State = StateClosed
	}
}

// FailProtection makes IsProtected return the given error for a frame,
// to exercise per-frame scan error handling.
func (m *MockStore) FailProtection(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.protErr[id] = err
}

func (m *MockStore) ListFrames(_ context.Context, filter ListFilter) ([]*Frame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.frames))
	for id := range m.frames {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*Frame
	for _, id := range ids {
		if filter.AfterID != "" && id <= filter.AfterID {
			continue
		}
		f := m.frames[id]
		if filter.State != "" && f.State != filter.State {
			continue
		}
		cp := *f
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MockStore) GetFrame(_ context.Context, id string) (*Frame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.frames[id]
	if !ok {
		return nil, ErrFrameNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MockStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames), nil
}

// IsProtected reports true when the frame is active or any descendant is.
func (m *MockStore) IsProtected(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.protErr[id]; ok {
		return false, err
	}
	f, ok := m.frames[id]
	if !ok {
		return false, ErrFrameNotFound
	}
	if f.State == StateActive {
		return true, nil
	}

	// Walk every active frame's ancestor chain looking for id.
	for _, other := range m.frames {
		if other.State != StateActive {
			continue
		}
		for cur := other; cur.ParentID != ""; {
			parent, ok := m.frames[cur.ParentID]
			if !ok {
				break
			}
			if parent.ID == id {
				return true, nil
			}
			cur = parent
		}
	}
	return false, nil
}

func (m *MockStore) MarkCollected(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.frames[id]
	if !ok {
		return ErrFrameNotFound
	}
	f.Collected = true
	f.Outputs = nil
	f.Metadata = nil
	m.collected[id] = true
	return nil
}

// CollectedIDs returns the IDs marked collected, for test assertions.
func (m *MockStore) CollectedIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.collected))
	for id := range m.collected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
