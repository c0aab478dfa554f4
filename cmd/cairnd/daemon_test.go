package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairn-io/cairn/internal/config"
	"github.com/cairn-io/cairn/internal/metadata"
	"github.com/cairn-io/cairn/internal/objectstore"
	"github.com/cairn-io/cairn/internal/tier"
)

func TestBuildBackendsAllConfigured(t *testing.T) {
	registry, err := buildBackends(config.Default(), metadata.NewMockStore(), objectstore.NewMockStore())
	require.NoError(t, err)

	for _, want := range tier.All {
		adapter, err := registry.For(want)
		require.NoError(t, err)
		assert.True(t, adapter.Available(), string(want))
	}
}

func TestBuildBackendsWithoutObjectStore(t *testing.T) {
	// No object store: cold tiers register but report unavailable, so
	// the daemon starts and serves the warm tiers.
	registry, err := buildBackends(config.Default(), metadata.NewMockStore(), nil)
	require.NoError(t, err)

	for _, tc := range []struct {
		tier      tier.Tier
		available bool
	}{
		{tier.Young, true},
		{tier.Mature, true},
		{tier.Old, false},
		{tier.Remote, false},
	} {
		adapter, err := registry.For(tc.tier)
		require.NoError(t, err)
		assert.Equal(t, tc.available, adapter.Available(), string(tc.tier))
	}
}
