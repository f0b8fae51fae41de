// Package remote implements a registry-backed copy target on top of
// go-containerregistry. Manifests and indexes go through the manifest
// endpoints, everything else through the blob endpoints; the wire
// protocol, auth negotiation, and redirects stay inside
// go-containerregistry.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	gcr "github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aweris/ocicopy/descriptor"
	"github.com/aweris/ocicopy/store"
)

const maxAttempts = 3

// Repository is a copy source and destination backed by one registry
// repository (e.g. "ghcr.io/example/app").
type Repository struct {
	ref  name.Reference
	auth Authenticator
}

// NewRepository creates a repository target from a standard Docker-style
// reference. A tag in the reference becomes the default for Resolve("")
// and Tag bindings; otherwise "latest".
func NewRepository(repoRef string, opts ...Option) (*Repository, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	parseOpts := []name.Option{name.WithDefaultTag("latest")}
	if options.plainHTTP {
		parseOpts = append(parseOpts, name.Insecure)
	}
	ref, err := name.ParseReference(repoRef, parseOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid repository ref %q: %w", repoRef, err)
	}
	return &Repository{ref: ref, auth: options.auth}, nil
}

func (r *Repository) String() string   { return r.ref.String() }
func (r *Repository) Registry() string { return r.ref.Context().RegistryStr() }

// Identifier returns the tag or digest portion of the repository reference.
func (r *Repository) Identifier() string { return r.ref.Identifier() }

// Resolve returns the descriptor for a tag or digest within the
// repository. An empty reference resolves the repository's own tag.
func (r *Repository) Resolve(ctx context.Context, reference string) (ocispec.Descriptor, error) {
	ref, err := r.parseReference(reference)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc, err := retry(ctx, func() (*v1.Descriptor, error) {
		return gcr.Head(ref, r.options(ctx)...)
	})
	if err != nil {
		return ocispec.Descriptor{}, mapError(err)
	}
	return toOCI(*desc), nil
}

// FetchReference resolves reference and returns its content in the same
// round trip.
func (r *Repository) FetchReference(ctx context.Context, reference string) (ocispec.Descriptor, io.ReadCloser, error) {
	ref, err := r.parseReference(reference)
	if err != nil {
		return ocispec.Descriptor{}, nil, err
	}
	got, err := retry(ctx, func() (*gcr.Descriptor, error) {
		return gcr.Get(ref, r.options(ctx)...)
	})
	if err != nil {
		return ocispec.Descriptor{}, nil, mapError(err)
	}
	manifest, err := got.RawManifest()
	if err != nil {
		return ocispec.Descriptor{}, nil, mapError(err)
	}
	return toOCI(got.Descriptor), io.NopCloser(bytes.NewReader(manifest)), nil
}

// Fetch returns the described content. Media types carrying successors
// are served by the manifest endpoints, everything else as blobs.
func (r *Repository) Fetch(ctx context.Context, target ocispec.Descriptor) (io.ReadCloser, error) {
	dig, err := r.digestRef(target)
	if err != nil {
		return nil, err
	}
	if descriptor.HasSuccessors(target.MediaType) {
		got, err := retry(ctx, func() (*gcr.Descriptor, error) {
			return gcr.Get(dig, r.options(ctx)...)
		})
		if err != nil {
			return nil, mapError(err)
		}
		manifest, err := got.RawManifest()
		if err != nil {
			return nil, mapError(err)
		}
		return io.NopCloser(bytes.NewReader(manifest)), nil
	}

	layer, err := gcr.Layer(dig, r.options(ctx)...)
	if err != nil {
		return nil, mapError(err)
	}
	rc, err := layer.Compressed()
	if err != nil {
		return nil, mapError(err)
	}
	return rc, nil
}

// Exists reports whether the registry has the described content.
func (r *Repository) Exists(ctx context.Context, target ocispec.Descriptor) (bool, error) {
	dig, err := r.digestRef(target)
	if err != nil {
		return false, err
	}
	if descriptor.HasSuccessors(target.MediaType) {
		_, err = retry(ctx, func() (*v1.Descriptor, error) {
			return gcr.Head(dig, r.options(ctx)...)
		})
	} else {
		_, err = retry(ctx, func() (int64, error) {
			layer, err := gcr.Layer(dig, r.options(ctx)...)
			if err != nil {
				return 0, err
			}
			return layer.Size()
		})
	}
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapError(err)
	}
	return true, nil
}

// Push uploads the content after verifying it client-side, so corrupt
// sources are caught before any bytes hit the wire.
func (r *Repository) Push(ctx context.Context, expected ocispec.Descriptor, content io.Reader) error {
	data, err := store.ReadAll(content, expected)
	if err != nil {
		return err
	}

	if descriptor.HasSuccessors(expected.MediaType) {
		dig, err := r.digestRef(expected)
		if err != nil {
			return err
		}
		m := rawManifest{content: data, mediaType: types.MediaType(expected.MediaType)}
		_, err = retry(ctx, func() (struct{}, error) {
			return struct{}{}, gcr.Put(dig, m, r.options(ctx)...)
		})
		return mapError(err)
	}

	if expected.Digest.Algorithm() != digest.SHA256 {
		return fmt.Errorf("push blob %s: non-sha256 digest: %w", expected.Digest, store.ErrUnsupported)
	}
	layer := static.NewLayer(data, types.MediaType(expected.MediaType))
	_, err = retry(ctx, func() (struct{}, error) {
		return struct{}{}, gcr.WriteLayer(r.ref.Context(), layer, r.options(ctx)...)
	})
	return mapError(err)
}

// Tag binds a tag to an already-pushed manifest. Returns ErrNotFound if
// the registry does not have the manifest.
func (r *Repository) Tag(ctx context.Context, desc ocispec.Descriptor, reference string) error {
	dig, err := r.digestRef(desc)
	if err != nil {
		return err
	}
	got, err := retry(ctx, func() (*gcr.Descriptor, error) {
		return gcr.Get(dig, r.options(ctx)...)
	})
	if err != nil {
		return mapError(err)
	}

	if reference == "" {
		reference = r.ref.Identifier()
	}
	tag, err := name.NewTag(r.ref.Context().String() + ":" + reference)
	if err != nil {
		return fmt.Errorf("invalid tag %q: %w", reference, err)
	}
	_, err = retry(ctx, func() (struct{}, error) {
		return struct{}{}, gcr.Tag(tag, got, r.options(ctx)...)
	})
	return mapError(err)
}

// rawManifest adapts pre-serialized manifest bytes to the upload API.
type rawManifest struct {
	content   []byte
	mediaType types.MediaType
}

func (m rawManifest) RawManifest() ([]byte, error)        { return m.content, nil }
func (m rawManifest) MediaType() (types.MediaType, error) { return m.mediaType, nil }

func (r *Repository) parseReference(reference string) (name.Reference, error) {
	if reference == "" {
		return r.ref, nil
	}
	if err := digest.Digest(reference).Validate(); err == nil {
		return name.NewDigest(r.ref.Context().String() + "@" + reference)
	}
	tag, err := name.NewTag(r.ref.Context().String() + ":" + reference)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", reference, err)
	}
	return tag, nil
}

func (r *Repository) digestRef(desc ocispec.Descriptor) (name.Digest, error) {
	dig, err := name.NewDigest(r.ref.Context().String() + "@" + desc.Digest.String())
	if err != nil {
		return name.Digest{}, fmt.Errorf("invalid digest %q: %w", desc.Digest, err)
	}
	return dig, nil
}

func toOCI(d v1.Descriptor) ocispec.Descriptor {
	out := ocispec.Descriptor{
		MediaType:    string(d.MediaType),
		Digest:       digest.Digest(d.Digest.String()),
		Size:         d.Size,
		URLs:         d.URLs,
		Annotations:  d.Annotations,
		ArtifactType: d.ArtifactType,
	}
	if d.Platform != nil {
		out.Platform = &ocispec.Platform{
			Architecture: d.Platform.Architecture,
			OS:           d.Platform.OS,
			OSVersion:    d.Platform.OSVersion,
			OSFeatures:   d.Platform.OSFeatures,
			Variant:      d.Platform.Variant,
		}
	}
	return out
}

func isNotFound(err error) bool {
	var terr *transport.Error
	return errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", store.ErrNotFound, err)
	}
	return err
}

// retry runs fn up to maxAttempts times with exponential backoff,
// honoring context cancellation between attempts. Not-found responses
// are returned immediately.
func retry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if isNotFound(err) {
			return zero, err
		}
		lastErr = err
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
