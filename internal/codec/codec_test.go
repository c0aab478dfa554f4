package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairn-io/cairn/internal/tier"
)

func testPayloads() map[string][]byte {
	big := bytes.Repeat([]byte("frame output with repeating structure "), 500)
	return map[string][]byte{
		"empty":      {},
		"small":      []byte(`{"id":"f-1","state":"closed"}`),
		"repetitive": big,
		"binary":     {0x00, 0xff, 0x10, 0x80, 0x7f, 0x00, 0x01},
	}
}

func TestRoundTripAllCodecs(t *testing.T) {
	reg, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	for _, name := range []string{"none", "snappy", "lz4", "zstd", "zstd-max"} {
		c, err := reg.ByName(name)
		require.NoError(t, err)

		for payloadName, payload := range testPayloads() {
			t.Run(name+"/"+payloadName, func(t *testing.T) {
				encoded, err := c.Encode(payload)
				require.NoError(t, err)

				decoded, err := c.Decode(encoded)
				require.NoError(t, err)
				assert.Equal(t, payload, decoded)
			})
		}
	}
}

func TestTierMapping(t *testing.T) {
	reg, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	expect := map[tier.Tier]string{
		tier.Young:  "none",
		tier.Mature: "snappy",
		tier.Old:    "zstd",
		tier.Remote: "zstd-max",
	}
	for tr, name := range expect {
		c, err := reg.ForTier(tr)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}

func TestLz4MatureSelection(t *testing.T) {
	reg, err := NewRegistry(Config{MatureCodec: "lz4", OldCodec: "zstd"})
	require.NoError(t, err)

	c, err := reg.ForTier(tier.Mature)
	require.NoError(t, err)
	assert.Equal(t, "lz4", c.Name())
}

func TestCompressionActuallyShrinks(t *testing.T) {
	reg, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("abcdefgh"), 4096)
	for _, name := range []string{"snappy", "lz4", "zstd", "zstd-max"} {
		c, err := reg.ByName(name)
		require.NoError(t, err)

		encoded, err := c.Encode(payload)
		require.NoError(t, err)
		assert.Less(t, len(encoded), len(payload), name)
	}
}

func TestRejectsUnknownCodecs(t *testing.T) {
	_, err := NewRegistry(Config{MatureCodec: "gzip", OldCodec: "zstd"})
	assert.Error(t, err)

	_, err = NewRegistry(Config{MatureCodec: "snappy", OldCodec: "snappy"})
	assert.Error(t, err)

	reg, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)
	_, err = reg.ByName("brotli")
	assert.Error(t, err)
}

func TestDecodeCorrupt(t *testing.T) {
	reg, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	for _, name := range []string{"snappy", "zstd"} {
		c, err := reg.ByName(name)
		require.NoError(t, err)
		_, err = c.Decode([]byte("definitely not compressed data"))
		assert.Error(t, err, name)
	}
}
