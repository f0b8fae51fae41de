// Package store defines the storage contracts shared by every content
// store in this module, together with small helpers for verified reads.
//
// A store keeps content addressed by OCI descriptors. The interfaces are
// deliberately fine-grained so that targets can implement exactly the
// capabilities they have: a registry can fetch and push but not list
// predecessors, an in-memory store can do everything.
package store

import (
	"context"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Fetcher fetches content by descriptor.
type Fetcher interface {
	// Fetch returns the content identified by the descriptor.
	// Returns ErrNotFound if the content is absent.
	Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error)
}

// Pusher pushes content keyed by descriptor.
type Pusher interface {
	// Push reads exactly expected.Size bytes from content, verifies them
	// against expected.Digest, and stores them under the descriptor key.
	// Returns ErrAlreadyExists if a push for the same key already won.
	Push(ctx context.Context, expected ocispec.Descriptor, content io.Reader) error
}

// ReadOnlyStorage is the read side of a content store.
type ReadOnlyStorage interface {
	Fetcher

	// Exists reports whether the described content is present.
	Exists(ctx context.Context, target ocispec.Descriptor) (bool, error)
}

// Storage is a content store supporting both reads and writes.
type Storage interface {
	ReadOnlyStorage
	Pusher
}

// Resolver resolves reference strings to descriptors.
type Resolver interface {
	// Resolve returns the descriptor bound to the reference.
	// Returns ErrNotFound if the reference is unknown.
	Resolve(ctx context.Context, reference string) (ocispec.Descriptor, error)
}

// Tagger binds reference strings to descriptors, last write wins.
type Tagger interface {
	// Tag binds reference to desc. The described content must already be
	// present in the store; Tag returns ErrNotFound otherwise.
	Tag(ctx context.Context, desc ocispec.Descriptor, reference string) error
}

// TagResolver handles both sides of the tag index.
type TagResolver interface {
	Resolver
	Tagger
}

// PredecessorFinder finds the nodes referencing a given node.
type PredecessorFinder interface {
	// Predecessors returns the known referrers of node. A node with no
	// tracked referrers yields an empty result, not an error.
	Predecessors(ctx context.Context, node ocispec.Descriptor) ([]ocispec.Descriptor, error)
}

// GraphStorage is a content store that also indexes predecessors.
type GraphStorage interface {
	Storage
	PredecessorFinder
}

// ReadOnlyGraphStorage is the read side of a graph store.
type ReadOnlyGraphStorage interface {
	ReadOnlyStorage
	PredecessorFinder
}

// ReferenceFetcher resolves a reference and fetches its content in a
// single round trip. Remote targets implement this as a fast path for
// resolving copy roots.
type ReferenceFetcher interface {
	FetchReference(ctx context.Context, reference string) (ocispec.Descriptor, io.ReadCloser, error)
}
