package memory_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/require"

	"github.com/aweris/ocicopy/descriptor"
	"github.com/aweris/ocicopy/store"
	"github.com/aweris/ocicopy/store/memory"
)

func manifestBytes(t *testing.T, config ocispec.Descriptor, layers ...ocispec.Descriptor) ([]byte, ocispec.Descriptor) {
	t.Helper()
	data, err := json.Marshal(ocispec.Manifest{
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    config,
		Layers:    layers,
	})
	require.NoError(t, err)
	return data, descriptor.FromBytes(ocispec.MediaTypeImageManifest, data)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	content := []byte("hello content")
	desc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, content)

	ok, err := s.Exists(ctx, desc)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Push(ctx, desc, bytes.NewReader(content)))

	ok, err = s.Exists(ctx, desc)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.FetchAll(ctx, s, desc)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestStore_FetchNotFound(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	desc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, []byte("absent"))

	_, err := s.Fetch(ctx, desc)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_PushMismatchedDigest(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	desc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, []byte("expected"))
	err := s.Push(ctx, desc, bytes.NewReader([]byte("imposter")))
	require.ErrorIs(t, err, store.ErrMismatchedDigest)

	ok, err := s.Exists(ctx, desc)
	require.NoError(t, err)
	require.False(t, ok, "failed push must leave storage unchanged")
}

func TestStore_PushShortContent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	content := []byte("full content")
	desc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, content)
	err := s.Push(ctx, desc, bytes.NewReader(content[:4]))
	require.ErrorIs(t, err, store.ErrMismatchedDigest)
}

func TestStore_PushNegativeSize(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	desc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, []byte("x"))
	desc.Size = -1
	err := s.Push(ctx, desc, bytes.NewReader([]byte("x")))
	require.ErrorIs(t, err, store.ErrInvalidDescriptorSize)
}

func TestStore_ExactlyOncePush(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	content := []byte("contended content")
	desc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, content)

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Push(ctx, desc, bytes.NewReader(content))
		}()
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrAlreadyExists):
			losses++
		default:
			t.Fatalf("unexpected push error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, n-1, losses)
}

func TestStore_PredecessorIndexing(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := descriptor.FromBytes(ocispec.MediaTypeImageLayer, []byte("a"))
	b := descriptor.FromBytes(ocispec.MediaTypeImageLayer, []byte("b"))
	c := descriptor.FromBytes(ocispec.MediaTypeImageConfig, []byte("c"))
	require.NoError(t, s.Push(ctx, a, bytes.NewReader([]byte("a"))))
	require.NoError(t, s.Push(ctx, b, bytes.NewReader([]byte("b"))))
	require.NoError(t, s.Push(ctx, c, bytes.NewReader([]byte("c"))))

	data, manifest := manifestBytes(t, c, a, b)
	require.NoError(t, s.Push(ctx, manifest, bytes.NewReader(data)))

	for _, child := range []ocispec.Descriptor{a, b, c} {
		predecessors, err := s.Predecessors(ctx, child)
		require.NoError(t, err)
		require.Len(t, predecessors, 1)
		require.True(t, descriptor.Equal(predecessors[0], manifest))
	}

	predecessors, err := s.Predecessors(ctx, manifest)
	require.NoError(t, err)
	require.Empty(t, predecessors, "a node with no referrers has no predecessors")
}

func TestStore_TagAndResolve(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	content := []byte("taggable")
	desc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, content)

	err := s.Tag(ctx, desc, "v1")
	require.ErrorIs(t, err, store.ErrNotFound, "tagging unstored content must fail")

	require.NoError(t, s.Push(ctx, desc, bytes.NewReader(content)))
	require.NoError(t, s.Tag(ctx, desc, "v1"))

	got, err := s.Resolve(ctx, "v1")
	require.NoError(t, err)
	require.True(t, descriptor.Equal(got, desc))

	_, err = s.Resolve(ctx, "unknown")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Last write wins.
	other := []byte("other")
	otherDesc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, other)
	require.NoError(t, s.Push(ctx, otherDesc, bytes.NewReader(other)))
	require.NoError(t, s.Tag(ctx, otherDesc, "v1"))

	got, err = s.Resolve(ctx, "v1")
	require.NoError(t, err)
	require.True(t, descriptor.Equal(got, otherDesc))

	tags := s.Tags()
	require.Len(t, tags, 1)
	require.True(t, descriptor.Equal(tags["v1"], otherDesc))
}
