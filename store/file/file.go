// Package file provides a persistent graph target backed by the local
// filesystem. Blobs are stored in sharded files, zstd-compressed at
// rest; descriptors and tags live in a JSON index persisted on Sync.
//
// Storage layout:
//
//	root/
//	  blobs/
//	    sha256/
//	      ab/cd123...  (content-addressed, compressed blobs)
//	  index.json       (known descriptors + tag bindings)
//
// The predecessor graph is not persisted; Open rebuilds it from the
// indexed manifests whose blobs are present.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aweris/ocicopy/descriptor"
	"github.com/aweris/ocicopy/internal/compression"
	"github.com/aweris/ocicopy/internal/graph"
	"github.com/aweris/ocicopy/store"
)

const indexFile = "index.json"

// Store is a filesystem-backed graph target. Safe for concurrent use
// within a single process; concurrent processes on the same directory
// are not coordinated.
type Store struct {
	root  string
	codec *compression.Codec

	descriptors sync.Map // descriptor.Basic -> ocispec.Descriptor
	tags        sync.Map // string -> ocispec.Descriptor
	graph       *graph.Memory

	dirty  atomic.Bool
	syncMu sync.Mutex
}

// Open creates or opens a store rooted at dir.
func Open(dir string, opts ...Option) (*Store, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	codec, err := compression.NewCodec(options.level)
	if err != nil {
		return nil, fmt.Errorf("create codec: %w", err)
	}

	s := &Store{
		root:  dir,
		codec: codec,
		graph: graph.NewMemory(),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Exists reports whether the described content is present.
func (s *Store) Exists(ctx context.Context, target ocispec.Descriptor) (bool, error) {
	_, ok := s.descriptors.Load(descriptor.BasicOf(target))
	return ok, nil
}

// Fetch returns the described content, or ErrNotFound.
func (s *Store) Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error) {
	if _, ok := s.descriptors.Load(descriptor.BasicOf(target)); !ok {
		return nil, fmt.Errorf("%s: %w", target.Digest, store.ErrNotFound)
	}
	data, err := s.readBlob(target)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Push verifies and stores the content. The blob file is written before
// the descriptor becomes visible, so readers never observe a descriptor
// without its content. Duplicate pushes fail with ErrAlreadyExists.
func (s *Store) Push(ctx context.Context, expected ocispec.Descriptor, content io.Reader) error {
	data, err := store.ReadAll(content, expected)
	if err != nil {
		return err
	}
	if err := s.writeBlob(expected, data); err != nil {
		return err
	}
	if _, loaded := s.descriptors.LoadOrStore(descriptor.BasicOf(expected), expected); loaded {
		return fmt.Errorf("%s: %w", expected.Digest, store.ErrAlreadyExists)
	}
	if err := s.graph.IndexBytes(expected, data); err != nil {
		return fmt.Errorf("index %s: %w", expected.Digest, err)
	}
	s.dirty.Store(true)
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
	if _, ok := s.descriptors.Load(descriptor.BasicOf(desc)); !ok {
		return fmt.Errorf("tag %s: %w", desc.Digest, store.ErrNotFound)
	}
	s.tags.Store(reference, desc)
	s.dirty.Store(true)
	return nil
}

// Predecessors returns the indexed referrers of node.
func (s *Store) Predecessors(ctx context.Context, node ocispec.Descriptor) ([]ocispec.Descriptor, error) {
	return s.graph.Predecessors(ctx, node)
}

// Sync persists the descriptor and tag index if it changed.
func (s *Store) Sync() error {
	if !s.dirty.Load() {
		return nil
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	var idx indexContent
	s.descriptors.Range(func(_, v any) bool {
		idx.Blobs = append(idx.Blobs, v.(ocispec.Descriptor))
		return true
	})
	idx.Tags = make(map[string]ocispec.Descriptor)
	s.tags.Range(func(k, v any) bool {
		idx.Tags[k.(string)] = v.(ocispec.Descriptor)
		return true
	})

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("serialize index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, indexFile), data, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	s.dirty.Store(false)
	return nil
}

// Close persists the index and releases the codec.
func (s *Store) Close() error {
	if err := s.Sync(); err != nil {
		return err
	}
	return s.codec.Close()
}

type indexContent struct {
	Blobs []ocispec.Descriptor          `json:"blobs"`
	Tags  map[string]ocispec.Descriptor `json:"tags,omitempty"`
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.root, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read index: %w", err)
	}
	var idx indexContent
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse index: %w", err)
	}

	for _, desc := range idx.Blobs {
		if _, err := os.Stat(s.blobPath(desc)); err != nil {
			continue // blob gone, drop the entry
		}
		s.descriptors.Store(descriptor.BasicOf(desc), desc)
	}
	for ref, desc := range idx.Tags {
		if _, ok := s.descriptors.Load(descriptor.BasicOf(desc)); ok {
			s.tags.Store(ref, desc)
		}
	}

	// Rebuild the predecessor graph from stored manifests and indexes.
	var indexErr error
	s.descriptors.Range(func(_, v any) bool {
		desc := v.(ocispec.Descriptor)
		if !descriptor.HasSuccessors(desc.MediaType) {
			return true
		}
		content, err := s.readBlob(desc)
		if err != nil {
			indexErr = err
			return false
		}
		if err := s.graph.IndexBytes(desc, content); err != nil {
			indexErr = fmt.Errorf("index %s: %w", desc.Digest, err)
			return false
		}
		return true
	})
	return indexErr
}

func (s *Store) readBlob(desc ocispec.Descriptor) ([]byte, error) {
	raw, err := os.ReadFile(s.blobPath(desc))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", desc.Digest, store.ErrNotFound)
		}
		return nil, fmt.Errorf("read blob %s: %w", desc.Digest, err)
	}
	data, err := s.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode blob %s: %w", desc.Digest, err)
	}
	if int64(len(data)) != desc.Size {
		return nil, fmt.Errorf("blob %s: size %d, want %d: %w", desc.Digest, len(data), desc.Size, store.ErrMismatchedDigest)
	}
	return data, nil
}

// writeBlob stores data compressed under the blob path. Writing via a
// temp file plus rename keeps concurrent pushes of the same content from
// observing partial files; both end up with identical bytes.
func (s *Store) writeBlob(desc ocispec.Descriptor, data []byte) error {
	path := s.blobPath(desc)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := tmp.Write(s.codec.Encode(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write blob %s: %w", desc.Digest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close blob %s: %w", desc.Digest, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit blob %s: %w", desc.Digest, err)
	}
	return nil
}

// blobPath shards blobs git-style: blobs/<algorithm>/ab/cdef...
func (s *Store) blobPath(desc ocispec.Descriptor) string {
	hex := desc.Digest.Encoded()
	if len(hex) < 4 {
		return filepath.Join(s.root, "blobs", desc.Digest.Algorithm().String(), hex)
	}
	return filepath.Join(s.root, "blobs", desc.Digest.Algorithm().String(), hex[:2], hex[2:])
}
