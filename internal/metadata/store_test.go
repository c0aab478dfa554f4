package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGetPutDelete(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	got, err := store.Get(ctx, "frames/mature/f-1")
	require.NoError(t, err)
	assert.False(t, got.Exists)

	require.NoError(t, store.Put(ctx, "frames/mature/f-1", []byte("payload")))

	got, err = store.Get(ctx, "frames/mature/f-1")
	require.NoError(t, err)
	assert.True(t, got.Exists)
	assert.Equal(t, []byte("payload"), got.Value)

	require.NoError(t, store.Delete(ctx, "frames/mature/f-1"))
	got, err = store.Get(ctx, "frames/mature/f-1")
	require.NoError(t, err)
	assert.False(t, got.Exists)

	// Deleting a missing key is not an error.
	require.NoError(t, store.Delete(ctx, "frames/mature/f-1"))
}

func TestMockListPrefix(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "frames/mature/b", []byte("2")))
	require.NoError(t, store.Put(ctx, "frames/mature/a", []byte("1")))
	require.NoError(t, store.Put(ctx, "frames/young/c", []byte("3")))

	kvs, err := store.List(ctx, "frames/mature/", "", 0)
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, "frames/mature/a", kvs[0].Key)
	assert.Equal(t, "frames/mature/b", kvs[1].Key)

	kvs, err = store.List(ctx, "frames/mature/", "", 1)
	require.NoError(t, err)
	require.Len(t, kvs, 1)

	// Explicit range end excludes keys at and past it.
	kvs, err = store.List(ctx, "frames/mature/a\x00", "frames/mature/c", 0)
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	assert.Equal(t, "frames/mature/b", kvs[0].Key)
}

func TestMockClosed(t *testing.T) {
	store := NewMockStore()
	require.NoError(t, store.Close())

	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Put(context.Background(), "k", nil), ErrStoreClosed)
}

func TestMockFailureInjection(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	outage := errors.New("timeout")
	store.SetFailing(outage)
	assert.ErrorIs(t, store.Put(ctx, "k", []byte("v")), outage)

	store.SetFailing(nil)
	assert.NoError(t, store.Put(ctx, "k", []byte("v")))
}
