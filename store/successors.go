package store

import (
	"context"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aweris/ocicopy/descriptor"
)

// Successors returns the nodes referenced by node, fetching and parsing
// its content when the media type carries references. Leaf nodes are
// never fetched.
func Successors(ctx context.Context, fetcher Fetcher, node ocispec.Descriptor) ([]ocispec.Descriptor, error) {
	if !descriptor.HasSuccessors(node.MediaType) {
		return nil, nil
	}
	content, err := FetchAll(ctx, fetcher, node)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", node.Digest, err)
	}
	return descriptor.Successors(node.MediaType, content)
}
