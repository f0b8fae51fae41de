package descriptor_test

import (
	"encoding/json"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/ocicopy/descriptor"
)

func TestFromBytes(t *testing.T) {
	content := []byte("some content")
	desc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, content)

	assert.Equal(t, ocispec.MediaTypeImageLayer, desc.MediaType)
	assert.Equal(t, digest.FromBytes(content), desc.Digest)
	assert.Equal(t, int64(len(content)), desc.Size)
}

func TestEqual_IgnoresAuxiliaryFields(t *testing.T) {
	a := descriptor.FromBytes(ocispec.MediaTypeImageLayer, []byte("same"))
	b := a
	b.Annotations = map[string]string{"org.example.note": "extra"}
	b.URLs = []string{"https://example.com/blob"}

	assert.True(t, descriptor.Equal(a, b))
	assert.Equal(t, descriptor.BasicOf(a), descriptor.BasicOf(b))

	c := a
	c.MediaType = ocispec.MediaTypeImageConfig
	assert.False(t, descriptor.Equal(a, c))
}

func TestSuccessors_Manifest(t *testing.T) {
	config := descriptor.FromBytes(ocispec.MediaTypeImageConfig, []byte("cfg"))
	layer1 := descriptor.FromBytes(ocispec.MediaTypeImageLayer, []byte("l1"))
	layer2 := descriptor.FromBytes(ocispec.MediaTypeImageLayer, []byte("l2"))
	subject := descriptor.FromBytes(ocispec.MediaTypeImageManifest, []byte("subject"))

	data, err := json.Marshal(ocispec.Manifest{
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    config,
		Layers:    []ocispec.Descriptor{layer1, layer2},
		Subject:   &subject,
	})
	require.NoError(t, err)

	successors, err := descriptor.Successors(ocispec.MediaTypeImageManifest, data)
	require.NoError(t, err)
	require.Len(t, successors, 4)
	assert.True(t, descriptor.Equal(successors[0], subject), "subject comes first")
	assert.True(t, descriptor.Equal(successors[1], config))
	assert.True(t, descriptor.Equal(successors[2], layer1))
	assert.True(t, descriptor.Equal(successors[3], layer2))
}

func TestSuccessors_ManifestWithoutSubject(t *testing.T) {
	config := descriptor.FromBytes(ocispec.MediaTypeImageConfig, []byte("cfg"))
	data, err := json.Marshal(ocispec.Manifest{
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    config,
	})
	require.NoError(t, err)

	successors, err := descriptor.Successors(ocispec.MediaTypeImageManifest, data)
	require.NoError(t, err)
	require.Len(t, successors, 1)
	assert.True(t, descriptor.Equal(successors[0], config))
}

func TestSuccessors_Index(t *testing.T) {
	m1 := descriptor.FromBytes(ocispec.MediaTypeImageManifest, []byte("m1"))
	m2 := descriptor.FromBytes(ocispec.MediaTypeImageManifest, []byte("m2"))
	data, err := json.Marshal(ocispec.Index{
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: []ocispec.Descriptor{m1, m2},
	})
	require.NoError(t, err)

	for _, mediaType := range []string{ocispec.MediaTypeImageIndex, descriptor.MediaTypeDockerManifestList} {
		successors, err := descriptor.Successors(mediaType, data)
		require.NoError(t, err)
		require.Len(t, successors, 2)
		assert.True(t, descriptor.Equal(successors[0], m1))
		assert.True(t, descriptor.Equal(successors[1], m2))
	}
}

func TestSuccessors_Leaf(t *testing.T) {
	successors, err := descriptor.Successors(ocispec.MediaTypeImageLayer, []byte("opaque"))
	require.NoError(t, err)
	assert.Empty(t, successors)
	assert.False(t, descriptor.HasSuccessors(ocispec.MediaTypeImageLayer))
	assert.True(t, descriptor.HasSuccessors(descriptor.MediaTypeDockerManifest))
}

func TestSuccessors_MalformedManifest(t *testing.T) {
	_, err := descriptor.Successors(ocispec.MediaTypeImageManifest, []byte("{not json"))
	require.Error(t, err)
}
