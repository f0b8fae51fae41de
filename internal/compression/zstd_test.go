package compression

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec(zstd.SpeedDefault)
	require.NoError(t, err)
	defer codec.Close()

	data := bytes.Repeat([]byte("highly repetitive payload "), 200)
	encoded := codec.Encode(data)
	require.Less(t, len(encoded), len(data), "repetitive data should compress")

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, data, decoded)
}

func TestCodec_SmallDataStoredRaw(t *testing.T) {
	codec, err := NewCodec(zstd.SpeedDefault)
	require.NoError(t, err)
	defer codec.Close()

	data := []byte("tiny")
	encoded := codec.Encode(data)
	require.Equal(t, data, encoded)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, data, decoded)
}

func TestCodec_MagicPrefixedRawIsCompressed(t *testing.T) {
	codec, err := NewCodec(zstd.SpeedDefault)
	require.NoError(t, err)
	defer codec.Close()

	// Raw data starting with the zstd magic must not be stored raw, or
	// Decode could not tell it apart from a compressed blob.
	data := append(append([]byte{}, magic...), []byte("disguised")...)
	encoded := codec.Encode(data)
	require.True(t, bytes.HasPrefix(encoded, magic))

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, data, decoded)
}
