package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairn-io/cairn/internal/metadata"
	"github.com/cairn-io/cairn/internal/objectstore"
	"github.com/cairn-io/cairn/internal/tier"
)

func TestMemoryAdapterPutGetDelete(t *testing.T) {
	a := NewMemoryAdapter(time.Hour)
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "f-1", []byte("young frame")))

	got, err := a.Get(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("young frame"), got)

	require.NoError(t, a.Delete(ctx, "f-1"))
	_, err = a.Get(ctx, "f-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryAdapterTTL(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	a := NewMemoryAdapter(time.Minute).WithClock(clock)
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "f-1", []byte("x")))

	now = now.Add(30 * time.Second)
	_, err := a.Get(ctx, "f-1")
	require.NoError(t, err)

	now = now.Add(31 * time.Second)
	_, err = a.Get(ctx, "f-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryAdapterPurge(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	a := NewMemoryAdapter(time.Minute).WithClock(clock)
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "f-1", []byte("x")))
	require.NoError(t, a.Put(ctx, "f-2", []byte("y")))
	assert.Equal(t, 2, a.Len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, a.Purge())
	assert.Equal(t, 0, a.Len())
}

func TestKVAdapterRoundTrip(t *testing.T) {
	store := metadata.NewMockStore()
	a := NewKVAdapter(store)
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "f-1", []byte("mature payload")))

	got, err := a.Get(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("mature payload"), got)

	// Primary entry plus time index entry.
	assert.Equal(t, 2, store.Len())

	require.NoError(t, a.Delete(ctx, "f-1"))
	assert.Equal(t, 0, store.Len())

	_, err = a.Get(ctx, "f-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKVAdapterTimeIndexOrder(t *testing.T) {
	store := metadata.NewMockStore()
	now := time.UnixMilli(1_000_000)
	a := NewKVAdapter(store).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "zz-first", []byte("1")))
	now = now.Add(time.Minute)
	require.NoError(t, a.Put(ctx, "aa-second", []byte("2")))

	kvs, err := store.List(ctx, "frames/mature/ts/", "", 0)
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	// Index keys sort by write time, not frame ID.
	assert.Contains(t, kvs[0].Key, "zz-first")
	assert.Contains(t, kvs[1].Key, "aa-second")
}

func TestKVAdapterUnavailable(t *testing.T) {
	a := NewKVAdapter(nil)
	assert.False(t, a.Available())
	assert.ErrorIs(t, a.Put(context.Background(), "k", nil), ErrUnavailable)
	_, err := a.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestObjectAdapterRoundTrip(t *testing.T) {
	store := objectstore.NewMockStore()
	a := NewObjectAdapter(store)
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "f-1", []byte("old payload")))

	got, err := a.Get(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("old payload"), got)

	meta, err := store.Head(ctx, "frames/old/f-1")
	require.NoError(t, err)
	assert.Empty(t, meta.StorageClass)

	require.NoError(t, a.Delete(ctx, "f-1"))
	_, err = a.Get(ctx, "f-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveAdapterStorageClass(t *testing.T) {
	store := objectstore.NewMockStore()
	a := NewArchiveAdapter(store, "DEEP_ARCHIVE")
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "f-2", []byte("cold payload")))

	meta, err := store.Head(ctx, "frames/remote/f-2")
	require.NoError(t, err)
	assert.Equal(t, "DEEP_ARCHIVE", meta.StorageClass)
}

func TestObjectAdapterOutage(t *testing.T) {
	store := objectstore.NewMockStore()
	a := NewObjectAdapter(store)
	ctx := context.Background()

	outage := errors.New("connection refused")
	store.SetFailing(outage)

	err := a.Put(ctx, "f-1", []byte("x"))
	assert.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRegistryProbeOrder(t *testing.T) {
	young := NewMemoryAdapter(time.Hour)
	mature := NewKVAdapter(metadata.NewMockStore())
	old := NewObjectAdapter(objectstore.NewMockStore())
	remote := NewArchiveAdapter(objectstore.NewMockStore(), "GLACIER")

	reg, err := NewRegistry(old, remote, young, mature)
	require.NoError(t, err)

	order := reg.ProbeOrder()
	require.Len(t, order, 4)
	assert.Equal(t, tier.Young, order[0].Tier())
	assert.Equal(t, tier.Mature, order[1].Tier())
	assert.Equal(t, tier.Old, order[2].Tier())
	assert.Equal(t, tier.Remote, order[3].Tier())

	got, err := reg.For(tier.Mature)
	require.NoError(t, err)
	assert.Same(t, mature, got)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(NewMemoryAdapter(time.Hour), NewMemoryAdapter(time.Hour))
	assert.Error(t, err)
}
