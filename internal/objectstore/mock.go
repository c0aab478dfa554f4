package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory implementation of the Store interface for testing.
// It can simulate outages via SetFailing.
type MockStore struct {
	mu      sync.RWMutex
	objects map[string]mockObject
	failErr error
}

type mockObject struct {
	data []byte
	meta ObjectMeta
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		objects: make(map[string]mockObject),
	}
}

// SetFailing makes every subsequent operation fail with err.
// Pass nil to restore normal operation.
func (s *MockStore) SetFailing(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *MockStore) failing() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failErr
}

func (s *MockStore) Put(_ context.Context, key string, reader io.Reader, _ int64, opts PutOptions) error {
	if err := s.failing(); err != nil {
		return &ObjectError{Op: "Put", Key: key, Err: err}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = mockObject{
		data: data,
		meta: ObjectMeta{
			Key:          key,
			Size:         int64(len(data)),
			StorageClass: opts.StorageClass,
			LastModified: time.Now().UnixMilli(),
		},
	}
	return nil
}

func (s *MockStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if err := s.failing(); err != nil {
		return nil, &ObjectError{Op: "Get", Key: key, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return nil, &ObjectError{Op: "Get", Key: key, Err: ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *MockStore) Head(_ context.Context, key string) (ObjectMeta, error) {
	if err := s.failing(); err != nil {
		return ObjectMeta{}, &ObjectError{Op: "Head", Key: key, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, exists := s.objects[key]
	if !exists {
		return ObjectMeta{}, &ObjectError{Op: "Head", Key: key, Err: ErrNotFound}
	}
	return obj.meta, nil
}

func (s *MockStore) Delete(_ context.Context, key string) error {
	if err := s.failing(); err != nil {
		return &ObjectError{Op: "Delete", Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MockStore) List(_ context.Context, prefix string) ([]ObjectMeta, error) {
	if err := s.failing(); err != nil {
		return nil, &ObjectError{Op: "List", Key: prefix, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var metas []ObjectMeta
	for k, v := range s.objects {
		if strings.HasPrefix(k, prefix) {
			metas = append(metas, v.meta)
		}
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Key < metas[j].Key })
	return metas, nil
}

func (s *MockStore) Close() error {
	return nil
}

// Len returns the number of stored objects, for test assertions.
func (s *MockStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
