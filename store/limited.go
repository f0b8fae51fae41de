package store

import (
	"context"
	"fmt"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// LimitedStorage rejects pushes of content larger than MaxSize.
// Reads pass through untouched.
type LimitedStorage struct {
	Storage

	// MaxSize is the largest content size Push accepts, in bytes.
	MaxSize int64
}

// LimitStorage caps the content size accepted by s at n bytes.
func LimitStorage(s Storage, n int64) *LimitedStorage {
	return &LimitedStorage{Storage: s, MaxSize: n}
}

// Push stores the content if it fits, otherwise fails with
// ErrSizeExceedsLimit without consuming the reader.
func (s *LimitedStorage) Push(ctx context.Context, expected ocispec.Descriptor, content io.Reader) error {
	if expected.Size > s.MaxSize {
		return fmt.Errorf("content size %d exceeds limit %d: %w", expected.Size, s.MaxSize, ErrSizeExceedsLimit)
	}
	return s.Storage.Push(ctx, expected, content)
}
