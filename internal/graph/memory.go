// Package graph implements the in-memory predecessor index shared by the
// memory and file stores.
package graph

import (
	"context"
	"sync"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aweris/ocicopy/descriptor"
	"github.com/aweris/ocicopy/store"
)

// Memory indexes predecessor edges keyed by basic descriptor. The index
// is append-only: edges are recorded when the referencing node is indexed
// and are never removed, so concurrent readers need no coordination
// beyond the maps themselves.
type Memory struct {
	// predecessors maps descriptor.Basic -> *sync.Map of
	// descriptor.Basic -> ocispec.Descriptor (the referrers).
	predecessors sync.Map
}

// NewMemory creates an empty predecessor index.
func NewMemory() *Memory {
	return &Memory{}
}

// Index records the edges successor -> node for every successor of node,
// fetching node's content to compute them. Leaf nodes are not fetched.
func (m *Memory) Index(ctx context.Context, fetcher store.Fetcher, node ocispec.Descriptor) error {
	if !descriptor.HasSuccessors(node.MediaType) {
		return nil
	}
	content, err := store.FetchAll(ctx, fetcher, node)
	if err != nil {
		return err
	}
	return m.IndexBytes(node, content)
}

// IndexBytes is Index for callers that already hold node's content.
func (m *Memory) IndexBytes(node ocispec.Descriptor, content []byte) error {
	successors, err := descriptor.Successors(node.MediaType, content)
	if err != nil {
		return err
	}
	nodeKey := descriptor.BasicOf(node)
	for _, s := range successors {
		v, _ := m.predecessors.LoadOrStore(descriptor.BasicOf(s), &sync.Map{})
		v.(*sync.Map).Store(nodeKey, node)
	}
	return nil
}

// Predecessors returns the known referrers of node. Untracked nodes yield
// an empty result.
func (m *Memory) Predecessors(ctx context.Context, node ocispec.Descriptor) ([]ocispec.Descriptor, error) {
	v, ok := m.predecessors.Load(descriptor.BasicOf(node))
	if !ok {
		return nil, nil
	}
	var nodes []ocispec.Descriptor
	v.(*sync.Map).Range(func(_, value any) bool {
		nodes = append(nodes, value.(ocispec.Descriptor))
		return true
	})
	return nodes, nil
}
