package safe

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressionOptions controls when blobs are stored compressed.
type CompressionOptions struct {
	// Disabled turns compression off entirely.
	Disabled bool
	// MinSize is the smallest blob worth compressing.
	MinSize int
	// Level is a zstd level, 1 (fastest) to 4 (best).
	Level int
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   2,
	}
}

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// codec wraps one zstd encoder and decoder. EncodeAll and DecodeAll may be
// called concurrently on both.
type codec struct {
	opts CompressionOptions
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newCodec(opts CompressionOptions) (*codec, error) {
	if opts.Level == 0 {
		opts.Level = DefaultCompressionOptions().Level
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &codec{opts: opts, enc: enc, dec: dec}, nil
}

// compress returns the bytes to put on disk and whether they are compressed.
// Content that does not shrink is stored as is.
func (c *codec) compress(content []byte) ([]byte, bool) {
	if c.opts.Disabled || len(content) < c.opts.MinSize {
		return content, false
	}
	out := c.enc.EncodeAll(content, make([]byte, 0, len(content)/2))
	if len(out) >= len(content) {
		return content, false
	}
	return out, true
}

func (c *codec) decompress(stored []byte) ([]byte, error) {
	if len(stored) < len(zstdMagic) || string(stored[:4]) != string(zstdMagic) {
		return nil, fmt.Errorf("stored blob is not zstd data")
	}
	return c.dec.DecodeAll(stored, nil)
}

func (c *codec) close() {
	c.enc.Close()
	c.dec.Close()
}
