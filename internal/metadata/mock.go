package metadata

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MockStore implements Store in memory for testing.
// It is exported so that tests in other packages can use it.
type MockStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	closed  bool
	failErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string][]byte),
	}
}

// SetFailing makes every subsequent operation fail with err.
// Pass nil to restore normal operation.
func (m *MockStore) SetFailing(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MockStore) Get(_ context.Context, key string) (GetResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return GetResult{}, ErrStoreClosed
	}
	if m.failErr != nil {
		return GetResult{}, m.failErr
	}
	value, ok := m.data[key]
	if !ok {
		return GetResult{Exists: false}, nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return GetResult{Value: cp, Exists: true}, nil
}

func (m *MockStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.failErr != nil {
		return m.failErr
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

func (m *MockStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.failErr != nil {
		return m.failErr
	}
	delete(m.data, key)
	return nil
}

func (m *MockStore) List(_ context.Context, startKey, endKey string, limit int) ([]KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if m.failErr != nil {
		return nil, m.failErr
	}

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if endKey == "" {
			if strings.HasPrefix(k, startKey) {
				keys = append(keys, k)
			}
			continue
		}
		if k >= startKey && k < endKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var kvs []KV
	for _, k := range keys {
		kvs = append(kvs, KV{Key: k, Value: m.data[k]})
		if limit > 0 && len(kvs) >= limit {
			break
		}
	}
	return kvs, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of stored keys, for test assertions.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
