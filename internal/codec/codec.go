// Package codec provides per-tier payload compression.
//
// Each storage tier has a codec appropriate to its access pattern:
// the young tier stores raw bytes, the mature tier uses a fast streaming
// codec (snappy or lz4), and the old and remote tiers use zstd at
// increasing levels. Storage objects record the codec they were written
// with, so a payload can always be decoded regardless of the tier
// policy in effect at read time.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/cairn-io/cairn/internal/tier"
)

// Codec compresses and decompresses frame payloads.
type Codec interface {
	// Name is the stable identifier recorded on storage objects.
	Name() string

	// Encode compresses the payload.
	Encode(data []byte) ([]byte, error)

	// Decode decompresses a payload previously produced by Encode.
	Decode(data []byte) ([]byte, error)
}

// noneCodec passes payloads through unchanged.
type noneCodec struct{}

func (noneCodec) Name() string                       { return "none" }
func (noneCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (noneCodec) Decode(data []byte) ([]byte, error) { return data, nil }

// snappyCodec uses snappy block compression.
type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Encode(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decode(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("codec: snappy decode: %w", err)
	}
	return out, nil
}

// lz4Codec uses the lz4 frame format.
type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("codec: lz4 encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decode(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 decode: %w", err)
	}
	return out, nil
}

// zstdCodec uses zstd at a configurable level. The "zstd-max" variant
// used by the remote tier trades encode time for ratio.
type zstdCodec struct {
	name string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newZstdCodec(name string, level zstd.EncoderLevel) (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("codec: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decoder: %w", err)
	}
	return &zstdCodec{name: name, enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Name() string { return c.name }

func (c *zstdCodec) Encode(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

func (c *zstdCodec) Decode(data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decode: %w", err)
	}
	return out, nil
}

// Registry holds the codec table: one codec per tier, plus lookup by
// name for decoding previously written objects.
type Registry struct {
	byTier map[tier.Tier]Codec
	byName map[string]Codec
}

// Config selects the codecs for the compressible tiers.
type Config struct {
	// MatureCodec is "snappy" or "lz4".
	MatureCodec string
	// OldCodec is "zstd".
	OldCodec string
}

// DefaultConfig returns the standard codec selection.
func DefaultConfig() Config {
	return Config{MatureCodec: "snappy", OldCodec: "zstd"}
}

// NewRegistry builds the codec registry for the given config.
func NewRegistry(cfg Config) (*Registry, error) {
	zstdStd, err := newZstdCodec("zstd", zstd.SpeedDefault)
	if err != nil {
		return nil, err
	}
	zstdMax, err := newZstdCodec("zstd-max", zstd.SpeedBestCompression)
	if err != nil {
		return nil, err
	}

	byName := map[string]Codec{
		"none":     noneCodec{},
		"snappy":   snappyCodec{},
		"lz4":      lz4Codec{},
		"zstd":     zstdStd,
		"zstd-max": zstdMax,
	}

	mature, ok := byName[cfg.MatureCodec]
	if !ok || (cfg.MatureCodec != "snappy" && cfg.MatureCodec != "lz4") {
		return nil, fmt.Errorf("codec: unsupported mature codec %q", cfg.MatureCodec)
	}
	old, ok := byName[cfg.OldCodec]
	if !ok || cfg.OldCodec != "zstd" {
		return nil, fmt.Errorf("codec: unsupported old codec %q", cfg.OldCodec)
	}

	return &Registry{
		byTier: map[tier.Tier]Codec{
			tier.Young:  noneCodec{},
			tier.Mature: mature,
			tier.Old:    old,
			tier.Remote: zstdMax,
		},
		byName: byName,
	}, nil
}

// ForTier returns the codec for writes to the given tier.
func (r *Registry) ForTier(t tier.Tier) (Codec, error) {
	c, ok := r.byTier[t]
	if !ok {
		return nil, fmt.Errorf("codec: no codec for tier %q", t)
	}
	return c, nil
}

// ByName returns the codec recorded on an existing storage object.
func (r *Registry) ByName(name string) (Codec, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
	return c, nil
}
