// Package compression provides the zstd codec the file store uses for
// at-rest blob compression.
package compression

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Blobs smaller than this are stored raw; compression overhead outweighs
// any gain.
const minEncodeSize = 128

// zstd frame magic, used to tell compressed blobs from raw ones on disk.
var magic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Codec compresses and decompresses blob files. Safe for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec at the given speed/ratio level.
func NewCodec(level zstd.EncoderLevel) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(level),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Encode returns data compressed, or raw when compression does not pay.
// Raw data that happens to start with the zstd magic is always
// compressed so Decode stays unambiguous.
func (c *Codec) Encode(data []byte) []byte {
	if len(data) < minEncodeSize && !bytes.HasPrefix(data, magic) {
		return data
	}
	compressed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(compressed) >= len(data) && !bytes.HasPrefix(data, magic) {
		return data
	}
	return compressed
}

// Decode reverses Encode.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, magic) {
		return data, nil
	}
	decoded, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return decoded, nil
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return nil
}
