package ocicopy

import (
	"context"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"

	"github.com/aweris/ocicopy/store"
)

const (
	// DefaultMaxMetadataBytes caps the size of a single cached manifest
	// or index during copy.
	DefaultMaxMetadataBytes int64 = 4 * 1024 * 1024

	// DefaultConcurrency bounds the parallel root copies of an extended
	// copy when the caller does not set one.
	DefaultConcurrency = 3
)

// CopyGraphOptions configures a graph copy.
type CopyGraphOptions struct {
	// MaxMetadataBytes is the largest content size the copy cache will
	// hold per entry. Zero means DefaultMaxMetadataBytes.
	MaxMetadataBytes int64

	// PreCopy runs before a node is copied. Returning SkipNode marks the
	// node as already present; any other error aborts the copy.
	PreCopy func(ctx context.Context, desc ocispec.Descriptor) error

	// PostCopy runs after a node has been copied.
	PostCopy func(ctx context.Context, desc ocispec.Descriptor) error

	// OnCopySkipped runs when a node is found already present at the
	// destination. Its successors are not visited.
	OnCopySkipped func(ctx context.Context, desc ocispec.Descriptor) error

	// FindSuccessors overrides how a node's successors are computed.
	// The default fetches the node through the copy cache and parses it
	// by media type.
	FindSuccessors func(ctx context.Context, fetcher store.Fetcher, desc ocispec.Descriptor) ([]ocispec.Descriptor, error)

	// Logger receives debug events for copied and skipped nodes.
	// Nil means no logging.
	Logger *zap.Logger
}

func (o *CopyGraphOptions) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

func (o *CopyGraphOptions) maxMetadataBytes() int64 {
	if o.MaxMetadataBytes > 0 {
		return o.MaxMetadataBytes
	}
	return DefaultMaxMetadataBytes
}

func (o *CopyGraphOptions) findSuccessors(ctx context.Context, fetcher store.Fetcher, desc ocispec.Descriptor) ([]ocispec.Descriptor, error) {
	if o.FindSuccessors != nil {
		return o.FindSuccessors(ctx, fetcher, desc)
	}
	return store.Successors(ctx, fetcher, desc)
}

// CopyOptions configures a reference copy.
type CopyOptions struct {
	CopyGraphOptions

	// MapRoot replaces the resolved root with another descriptor before
	// the graph copy starts, for example selecting a platform-specific
	// manifest out of an index. Content fetched while the hook runs is
	// not cached.
	MapRoot func(ctx context.Context, src store.ReadOnlyStorage, root ocispec.Descriptor) (ocispec.Descriptor, error)
}

// ExtendedCopyGraphOptions configures an extended graph copy.
type ExtendedCopyGraphOptions struct {
	CopyGraphOptions

	// Depth truncates the upward root discovery walk. Zero means no limit.
	Depth int

	// Concurrency bounds the parallel per-root copies. Zero means
	// DefaultConcurrency.
	Concurrency int

	// FindPredecessors overrides how a node's referrers are looked up
	// during root discovery. The default asks the source store.
	FindPredecessors func(ctx context.Context, src store.ReadOnlyGraphStorage, desc ocispec.Descriptor) ([]ocispec.Descriptor, error)
}

func (o *ExtendedCopyGraphOptions) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return DefaultConcurrency
}

func (o *ExtendedCopyGraphOptions) findPredecessors(ctx context.Context, src store.ReadOnlyGraphStorage, desc ocispec.Descriptor) ([]ocispec.Descriptor, error) {
	if o.FindPredecessors != nil {
		return o.FindPredecessors(ctx, src, desc)
	}
	return src.Predecessors(ctx, desc)
}
