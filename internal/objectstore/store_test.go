package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockPutGetDelete(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	data := []byte("frame snapshot bytes")
	require.NoError(t, store.Put(ctx, "frames/old/f-1", bytes.NewReader(data), int64(len(data)), PutOptions{}))

	rc, err := store.Get(ctx, "frames/old/f-1")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, "frames/old/f-1"))
	_, err = store.Get(ctx, "frames/old/f-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStorageClass(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	data := []byte("archived frame")
	require.NoError(t, store.Put(ctx, "frames/remote/f-2", bytes.NewReader(data), int64(len(data)),
		PutOptions{StorageClass: "DEEP_ARCHIVE"}))

	meta, err := store.Head(ctx, "frames/remote/f-2")
	require.NoError(t, err)
	assert.Equal(t, "DEEP_ARCHIVE", meta.StorageClass)
	assert.Equal(t, int64(len(data)), meta.Size)
}

func TestMockList(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	for _, key := range []string{"frames/old/b", "frames/old/a", "frames/remote/c"} {
		require.NoError(t, store.Put(ctx, key, bytes.NewReader([]byte("x")), 1, PutOptions{}))
	}

	metas, err := store.List(ctx, "frames/old/")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "frames/old/a", metas[0].Key)
	assert.Equal(t, "frames/old/b", metas[1].Key)
}

func TestMockFailureInjection(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	outage := errors.New("connection refused")
	store.SetFailing(outage)

	err := store.Put(ctx, "k", bytes.NewReader([]byte("x")), 1, PutOptions{})
	assert.ErrorIs(t, err, outage)

	var objErr *ObjectError
	require.ErrorAs(t, err, &objErr)
	assert.Equal(t, "Put", objErr.Op)

	store.SetFailing(nil)
	assert.NoError(t, store.Put(ctx, "k", bytes.NewReader([]byte("x")), 1, PutOptions{}))
}

type recordingMetrics struct {
	puts, gets, deletes int
	putBytes            int64
	failures            int
}

func (r *recordingMetrics) RecordPut(_ float64, success bool, bytes int64) {
	r.puts++
	r.putBytes += bytes
	if !success {
		r.failures++
	}
}
func (r *recordingMetrics) RecordGet(_ float64, success bool) {
	r.gets++
	if !success {
		r.failures++
	}
}
func (r *recordingMetrics) RecordDelete(_ float64, success bool) {
	r.deletes++
	if !success {
		r.failures++
	}
}

func TestInstrumentedStoreRecords(t *testing.T) {
	rec := &recordingMetrics{}
	store := NewInstrumentedStore(NewMockStore(), rec)
	ctx := context.Background()

	data := []byte("payload")
	require.NoError(t, store.Put(ctx, "k", bytes.NewReader(data), int64(len(data)), PutOptions{}))

	rc, err := store.Get(ctx, "k")
	require.NoError(t, err)
	rc.Close()

	_, err = store.Get(ctx, "missing")
	assert.Error(t, err)

	require.NoError(t, store.Delete(ctx, "k"))

	assert.Equal(t, 1, rec.puts)
	assert.Equal(t, int64(len(data)), rec.putBytes)
	assert.Equal(t, 2, rec.gets)
	assert.Equal(t, 1, rec.deletes)
	assert.Equal(t, 1, rec.failures)
}
