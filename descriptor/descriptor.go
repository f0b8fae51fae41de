// Package descriptor implements the identity model for content-addressed
// graph nodes: the basic descriptor key and the successor relation derived
// from manifest and index payloads.
package descriptor

import (
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Basic is the (MediaType, Digest, Size) triple identifying a graph node.
// Two descriptors with equal triples denote the same node even if their
// auxiliary fields (URLs, annotations, platform) differ. Basic is
// comparable and used as a map key throughout the module.
type Basic struct {
	MediaType string
	Digest    digest.Digest
	Size      int64
}

// BasicOf reduces a full descriptor to its identity triple.
func BasicOf(desc ocispec.Descriptor) Basic {
	return Basic{
		MediaType: desc.MediaType,
		Digest:    desc.Digest,
		Size:      desc.Size,
	}
}

// Equal reports whether a and b denote the same node.
func Equal(a, b ocispec.Descriptor) bool {
	return a.MediaType == b.MediaType && a.Digest == b.Digest && a.Size == b.Size
}

// FromBytes computes the descriptor of content under the given media type
// using the canonical digest algorithm.
func FromBytes(mediaType string, content []byte) ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: mediaType,
		Digest:    digest.FromBytes(content),
		Size:      int64(len(content)),
	}
}
