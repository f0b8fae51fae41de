package descriptor

import (
	"encoding/json"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Docker media types accepted alongside their OCI equivalents. Registries
// still serve plenty of both.
const (
	MediaTypeDockerManifest     = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
)

// HasSuccessors reports whether nodes of the given media type can
// reference other nodes. Anything else is a leaf.
func HasSuccessors(mediaType string) bool {
	switch mediaType {
	case ocispec.MediaTypeImageManifest, ocispec.MediaTypeImageIndex,
		MediaTypeDockerManifest, MediaTypeDockerManifestList:
		return true
	}
	return false
}

// Successors parses content of the given media type and returns the nodes
// it references: subject (if any), config and layers for a manifest, the
// manifest list for an index, nothing for a leaf.
func Successors(mediaType string, content []byte) ([]ocispec.Descriptor, error) {
	switch mediaType {
	case ocispec.MediaTypeImageManifest, MediaTypeDockerManifest:
		var manifest ocispec.Manifest
		if err := json.Unmarshal(content, &manifest); err != nil {
			return nil, fmt.Errorf("parse manifest: %w", err)
		}
		nodes := make([]ocispec.Descriptor, 0, len(manifest.Layers)+2)
		if manifest.Subject != nil {
			nodes = append(nodes, *manifest.Subject)
		}
		nodes = append(nodes, manifest.Config)
		return append(nodes, manifest.Layers...), nil
	case ocispec.MediaTypeImageIndex, MediaTypeDockerManifestList:
		var index ocispec.Index
		if err := json.Unmarshal(content, &index); err != nil {
			return nil, fmt.Errorf("parse index: %w", err)
		}
		return index.Manifests, nil
	}
	return nil, nil
}
