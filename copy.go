package ocicopy

import (
	"context"
	"errors"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"

	"github.com/aweris/ocicopy/internal/cas"
	"github.com/aweris/ocicopy/store"
)

// Copy resolves srcRef against src, copies the graph rooted at the
// resolved descriptor into dst, and tags the root there as dstRef.
// An empty dstRef defaults to srcRef. Returns the root descriptor.
//
// Sources supporting fetch-by-reference resolve the root and fetch its
// content in a single round trip; the content is cached so the graph
// copy does not refetch it.
func Copy(ctx context.Context, src ReadOnlyTarget, srcRef string, dst Target, dstRef string, opts CopyOptions) (ocispec.Descriptor, error) {
	if src == nil {
		return ocispec.Descriptor{}, errors.New("ocicopy: nil source target")
	}
	if dst == nil {
		return ocispec.Descriptor{}, errors.New("ocicopy: nil destination target")
	}
	if srcRef == "" {
		return ocispec.Descriptor{}, errors.New("ocicopy: empty source reference")
	}
	if dstRef == "" {
		dstRef = srcRef
	}

	proxy := cas.NewProxyWithLimit(src, cas.NewMemory(), opts.maxMetadataBytes())

	var root ocispec.Descriptor
	if rf, ok := src.(store.ReferenceFetcher); ok {
		desc, rc, err := cas.NewReferenceProxy(rf, proxy).FetchReference(ctx, srcRef)
		if err != nil {
			return ocispec.Descriptor{}, fmt.Errorf("resolve %s: %w", srcRef, err)
		}
		rc.Close()
		root = desc
	} else {
		desc, err := src.Resolve(ctx, srcRef)
		if err != nil {
			return ocispec.Descriptor{}, fmt.Errorf("resolve %s: %w", srcRef, err)
		}
		root = desc
	}

	if opts.MapRoot != nil {
		// Content fetched by the hook is speculative; keep it out of the cache.
		proxy.StopCaching()
		mapped, err := opts.MapRoot(ctx, proxy, root)
		proxy.ResumeCaching()
		if err != nil {
			return ocispec.Descriptor{}, err
		}
		root = mapped
	}

	if err := copyGraph(ctx, proxy, dst, root, &opts.CopyGraphOptions); err != nil {
		return ocispec.Descriptor{}, err
	}
	if err := dst.Tag(ctx, root, dstRef); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("tag %s: %w", dstRef, err)
	}

	opts.logger().Debug("copy complete",
		zap.String("source", srcRef),
		zap.String("destination", dstRef),
		zap.String("digest", root.Digest.String()))
	return root, nil
}

// CopyGraph copies the graph rooted at node from src into dst,
// depth-first, successors before the nodes referencing them. Manifests
// and indexes fetched to compute successors are served from a
// size-bounded in-memory cache.
func CopyGraph(ctx context.Context, src store.ReadOnlyStorage, dst store.Storage, node ocispec.Descriptor, opts CopyGraphOptions) error {
	proxy := cas.NewProxyWithLimit(src, cas.NewMemory(), opts.maxMetadataBytes())
	return copyGraph(ctx, proxy, dst, node, &opts)
}

// copyGraph is the recursive worker behind CopyGraph. src is expected to
// be the caching proxy. Any error aborts the whole copy; this layer does
// not retry.
func copyGraph(ctx context.Context, src store.ReadOnlyStorage, dst store.Storage, node ocispec.Descriptor, opts *CopyGraphOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	exists, err := dst.Exists(ctx, node)
	if err != nil {
		return fmt.Errorf("exists %s: %w", node.Digest, err)
	}
	if exists {
		// Children-before-parent ordering means presence of a node
		// implies presence of its whole sub-graph.
		return skipNode(ctx, node, opts)
	}

	if opts.PreCopy != nil {
		switch err := opts.PreCopy(ctx, node); {
		case errors.Is(err, SkipNode):
			return nil
		case err != nil:
			return err
		}
	}

	successors, err := opts.findSuccessors(ctx, src, node)
	if err != nil {
		return fmt.Errorf("successors of %s: %w", node.Digest, err)
	}
	for _, s := range successors {
		if err := copyGraph(ctx, src, dst, s, opts); err != nil {
			return err
		}
	}

	return copyNode(ctx, src, dst, node, opts)
}

// copyNode moves a single node whose successors are already present at
// the destination.
func copyNode(ctx context.Context, src store.Fetcher, dst store.Pusher, node ocispec.Descriptor, opts *CopyGraphOptions) error {
	rc, err := src.Fetch(ctx, node)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", node.Digest, err)
	}
	err = dst.Push(ctx, node, rc)
	rc.Close()
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a push race over a shared sub-graph: the content is in
		// place, which is all this node needed.
		return skipNode(ctx, node, opts)
	}
	if err != nil {
		return fmt.Errorf("push %s: %w", node.Digest, err)
	}

	opts.logger().Debug("copied node",
		zap.String("mediaType", node.MediaType),
		zap.String("digest", node.Digest.String()),
		zap.Int64("size", node.Size))
	if opts.PostCopy != nil {
		return opts.PostCopy(ctx, node)
	}
	return nil
}

func skipNode(ctx context.Context, node ocispec.Descriptor, opts *CopyGraphOptions) error {
	opts.logger().Debug("skipped node",
		zap.String("mediaType", node.MediaType),
		zap.String("digest", node.Digest.String()))
	if opts.OnCopySkipped != nil {
		return opts.OnCopySkipped(ctx, node)
	}
	return nil
}
