package cas

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aweris/ocicopy/store"
)

// Proxy serves fetches from a size-bounded cache in front of a read-only
// source. Caching is strictly an optimization: a cache insert refused for
// size or lost to a concurrent duplicate never fails the fetch.
type Proxy struct {
	source store.ReadOnlyStorage
	cache  store.Storage

	// suspended pauses cache inserts, set while a root-mapping hook runs
	// so speculative content is not cached.
	suspended atomic.Bool
}

// NewProxy wraps source with the given cache.
func NewProxy(source store.ReadOnlyStorage, cache store.Storage) *Proxy {
	return &Proxy{source: source, cache: cache}
}

// NewProxyWithLimit wraps source with cache capped at limit bytes per entry.
func NewProxyWithLimit(source store.ReadOnlyStorage, cache store.Storage, limit int64) *Proxy {
	return &Proxy{source: source, cache: store.LimitStorage(cache, limit)}
}

// StopCaching suspends cache inserts until ResumeCaching.
func (p *Proxy) StopCaching() { p.suspended.Store(true) }

// ResumeCaching re-enables cache inserts.
func (p *Proxy) ResumeCaching() { p.suspended.Store(false) }

// Exists reports presence in the cache or, failing that, the source.
func (p *Proxy) Exists(ctx context.Context, target ocispec.Descriptor) (bool, error) {
	if ok, err := p.cache.Exists(ctx, target); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	return p.source.Exists(ctx, target)
}

// Fetch serves from the cache when possible, otherwise fetches from the
// source and attempts to cache the content on the way through.
func (p *Proxy) Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error) {
	if ok, err := p.cache.Exists(ctx, target); err == nil && ok {
		return p.cache.Fetch(ctx, target)
	}

	rc, err := p.source.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if p.suspended.Load() {
		return rc, nil
	}
	defer rc.Close()

	data, err := store.ReadAll(rc, target)
	if err != nil {
		return nil, err
	}
	if err := p.cacheContent(ctx, target, data); err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// cacheContent inserts data into the cache, tolerating the two benign
// refusals: the content is too large to cache, or a concurrent fetch of
// the same content won the insert.
func (p *Proxy) cacheContent(ctx context.Context, target ocispec.Descriptor, data []byte) error {
	err := p.cache.Push(ctx, target, bytes.NewReader(data))
	if err == nil ||
		errors.Is(err, store.ErrSizeExceedsLimit) ||
		errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	return err
}

// ReferenceProxy additionally proxies fetch-by-reference, caching the
// fetched root content so the graph copy that follows does not refetch it.
type ReferenceProxy struct {
	*Proxy
	source store.ReferenceFetcher
}

// NewReferenceProxy wraps a source that supports fetch-by-reference.
func NewReferenceProxy(source store.ReferenceFetcher, proxy *Proxy) *ReferenceProxy {
	return &ReferenceProxy{Proxy: proxy, source: source}
}

// FetchReference resolves reference in one round trip and caches the
// returned content under its descriptor.
func (p *ReferenceProxy) FetchReference(ctx context.Context, reference string) (ocispec.Descriptor, io.ReadCloser, error) {
	target, rc, err := p.source.FetchReference(ctx, reference)
	if err != nil {
		return ocispec.Descriptor{}, nil, err
	}
	defer rc.Close()

	data, err := store.ReadAll(rc, target)
	if err != nil {
		return ocispec.Descriptor{}, nil, err
	}
	if err := p.cacheContent(ctx, target, data); err != nil {
		return ocispec.Descriptor{}, nil, err
	}
	return target, io.NopCloser(bytes.NewReader(data)), nil
}
