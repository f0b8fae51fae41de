// Package memory provides the reference in-memory content-addressable
// store: a concurrent content map, a predecessor index over it, and a
// tag index, composed into a graph target.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aweris/ocicopy/internal/cas"
	"github.com/aweris/ocicopy/internal/graph"
	"github.com/aweris/ocicopy/store"
)

// Store is an in-memory graph target. Content lives for the lifetime of
// the store; nothing is evicted. Safe for concurrent use.
type Store struct {
	content *cas.Memory
	graph   *graph.Memory
	tags    sync.Map // string -> ocispec.Descriptor
}

// New creates an empty store.
func New() *Store {
	return &Store{
		content: cas.NewMemory(),
		graph:   graph.NewMemory(),
	}
}

// Exists reports whether the described content is present.
func (s *Store) Exists(ctx context.Context, target ocispec.Descriptor) (bool, error) {
	return s.content.Exists(ctx, target)
}

// Fetch returns the described content, or ErrNotFound.
func (s *Store) Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error) {
	return s.content.Fetch(ctx, target)
}

// Push verifies and stores the content, then indexes the predecessor
// edges it induces. The content map is updated first, so a node is never
// visible in the graph index without its content being durable.
func (s *Store) Push(ctx context.Context, expected ocispec.Descriptor, content io.Reader) error {
	if err := s.content.Push(ctx, expected, content); err != nil {
		return err
	}
	if err := s.graph.Index(ctx, s.content, expected); err != nil {
		return fmt.Errorf("index %s: %w", expected.Digest, err)
	}
	return nil
}

// Resolve returns the descriptor tagged with reference, or ErrNotFound.
func (s *Store) Resolve(ctx context.Context, reference string) (ocispec.Descriptor, error) {
	v, ok := s.tags.Load(reference)
	if !ok {
		return ocispec.Descriptor{}, fmt.Errorf("%s: %w", reference, store.ErrNotFound)
	}
	return v.(ocispec.Descriptor), nil
}

// Tag binds reference to desc, overwriting any previous binding. The
// described content must already be stored.
func (s *Store) Tag(ctx context.Context, desc ocispec.Descriptor, reference string) error {
	ok, err := s.content.Exists(ctx, desc)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("tag %s: %w", desc.Digest, store.ErrNotFound)
	}
	s.tags.Store(reference, desc)
	return nil
}

// Predecessors returns the indexed referrers of node.
func (s *Store) Predecessors(ctx context.Context, node ocispec.Descriptor) ([]ocispec.Descriptor, error) {
	return s.graph.Predecessors(ctx, node)
}

// Tags returns a snapshot of the tag index.
func (s *Store) Tags() map[string]ocispec.Descriptor {
	out := make(map[string]ocispec.Descriptor)
	s.tags.Range(func(k, v any) bool {
		out[k.(string)] = v.(ocispec.Descriptor)
		return true
	})
	return out
}
