// Package cas provides the concurrent content map used as the building
// block for in-memory storage, and the caching proxy wrapped around copy
// sources.
package cas

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aweris/ocicopy/descriptor"
	"github.com/aweris/ocicopy/store"
)

// Memory is a concurrent map from basic descriptor to content bytes.
// Push verifies size and digest before inserting; at most one push per
// key succeeds.
type Memory struct {
	content sync.Map // descriptor.Basic -> []byte
}

// NewMemory creates an empty content map.
func NewMemory() *Memory {
	return &Memory{}
}

// Exists reports whether the described content is present.
func (m *Memory) Exists(ctx context.Context, target ocispec.Descriptor) (bool, error) {
	_, ok := m.content.Load(descriptor.BasicOf(target))
	return ok, nil
}

// Fetch returns the described content, or ErrNotFound.
func (m *Memory) Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error) {
	v, ok := m.content.Load(descriptor.BasicOf(target))
	if !ok {
		return nil, fmt.Errorf("%s: %w", target.Digest, store.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(v.([]byte))), nil
}

// Push verifies content against expected and inserts it atomically.
// A prior or concurrent winner makes Push fail with ErrAlreadyExists.
func (m *Memory) Push(ctx context.Context, expected ocispec.Descriptor, content io.Reader) error {
	data, err := store.ReadAll(content, expected)
	if err != nil {
		return err
	}
	if _, loaded := m.content.LoadOrStore(descriptor.BasicOf(expected), data); loaded {
		return fmt.Errorf("%s: %w", expected.Digest, store.ErrAlreadyExists)
	}
	return nil
}
