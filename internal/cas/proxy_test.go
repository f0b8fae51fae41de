package cas

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/require"

	"github.com/aweris/ocicopy/descriptor"
	"github.com/aweris/ocicopy/store"
)

// countingStorage counts fetches served by the wrapped storage.
type countingStorage struct {
	store.Storage
	fetches atomic.Int64
}

func (s *countingStorage) Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error) {
	s.fetches.Add(1)
	return s.Storage.Fetch(ctx, target)
}

func newSource(t *testing.T, entries map[string][]byte) (*countingStorage, map[string]ocispec.Descriptor) {
	t.Helper()
	ctx := context.Background()
	inner := NewMemory()
	descs := make(map[string]ocispec.Descriptor)
	for name, data := range entries {
		desc := descriptor.FromBytes(ocispec.MediaTypeImageLayer, data)
		require.NoError(t, inner.Push(ctx, desc, bytes.NewReader(data)))
		descs[name] = desc
	}
	return &countingStorage{Storage: inner}, descs
}

func TestProxy_CachesFetchedContent(t *testing.T) {
	ctx := context.Background()
	source, descs := newSource(t, map[string][]byte{"a": []byte("cached content")})
	proxy := NewProxyWithLimit(source, NewMemory(), 1024)

	for i := 0; i < 3; i++ {
		rc, err := proxy.Fetch(ctx, descs["a"])
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		require.Equal(t, []byte("cached content"), data)
	}
	require.Equal(t, int64(1), source.fetches.Load(), "cache hits must not refetch")
}

func TestProxy_SizeLimitSkipsCaching(t *testing.T) {
	ctx := context.Background()
	big := bytes.Repeat([]byte("x"), 64)
	source, descs := newSource(t, map[string][]byte{"big": big})
	proxy := NewProxyWithLimit(source, NewMemory(), 16)

	for i := 0; i < 2; i++ {
		rc, err := proxy.Fetch(ctx, descs["big"])
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		require.Equal(t, big, data, "content too large to cache is still served")
	}
	require.Equal(t, int64(2), source.fetches.Load(), "oversized content bypasses the cache")
}

func TestProxy_SuspendedCaching(t *testing.T) {
	ctx := context.Background()
	source, descs := newSource(t, map[string][]byte{"a": []byte("speculative")})
	cache := NewMemory()
	proxy := NewProxyWithLimit(source, cache, 1024)

	proxy.StopCaching()
	rc, err := proxy.Fetch(ctx, descs["a"])
	require.NoError(t, err)
	io.ReadAll(rc)
	rc.Close()

	ok, err := cache.Exists(ctx, descs["a"])
	require.NoError(t, err)
	require.False(t, ok, "suspended proxy must not cache")

	proxy.ResumeCaching()
	rc, err = proxy.Fetch(ctx, descs["a"])
	require.NoError(t, err)
	rc.Close()

	ok, err = cache.Exists(ctx, descs["a"])
	require.NoError(t, err)
	require.True(t, ok)
}

func TestProxy_ExistsChecksCacheFirst(t *testing.T) {
	ctx := context.Background()
	source, descs := newSource(t, map[string][]byte{"a": []byte("present")})
	proxy := NewProxyWithLimit(source, NewMemory(), 1024)

	ok, err := proxy.Exists(ctx, descs["a"])
	require.NoError(t, err)
	require.True(t, ok)

	missing := descriptor.FromBytes(ocispec.MediaTypeImageLayer, []byte("missing"))
	ok, err = proxy.Exists(ctx, missing)
	require.NoError(t, err)
	require.False(t, ok)
}

// refSource is a reference-fetching source for testing ReferenceProxy.
type refSource struct {
	desc ocispec.Descriptor
	data []byte
}

func (s *refSource) FetchReference(ctx context.Context, reference string) (ocispec.Descriptor, io.ReadCloser, error) {
	return s.desc, io.NopCloser(bytes.NewReader(s.data)), nil
}

func TestReferenceProxy_CachesRootContent(t *testing.T) {
	ctx := context.Background()
	data := []byte("root manifest")
	desc := descriptor.FromBytes(ocispec.MediaTypeImageManifest, data)

	source, _ := newSource(t, nil)
	proxy := NewProxyWithLimit(source, NewMemory(), 1024)
	refProxy := NewReferenceProxy(&refSource{desc: desc, data: data}, proxy)

	got, rc, err := refProxy.FetchReference(ctx, "v1")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	require.True(t, descriptor.Equal(got, desc))
	require.Equal(t, data, body)

	// The graph copy that follows fetches the root through the proxy; it
	// must be served from the cache, not the source.
	rc, err = proxy.Fetch(ctx, desc)
	require.NoError(t, err)
	cached, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	require.Equal(t, data, cached)
	require.Zero(t, source.fetches.Load())
}
