package ocicopy

import (
	"context"
	"errors"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/aweris/ocicopy/descriptor"
	"github.com/aweris/ocicopy/internal/cas"
	"github.com/aweris/ocicopy/store"
)

// ExtendedCopyGraph walks predecessors upward from node to discover
// every reachable DAG root, then copies each root's full sub-graph from
// src into dst. Root copies run in parallel, bounded by
// opts.Concurrency, sharing one size-capped metadata cache; the first
// failure cancels the rest.
func ExtendedCopyGraph(ctx context.Context, src store.ReadOnlyGraphStorage, dst store.Storage, node ocispec.Descriptor, opts ExtendedCopyGraphOptions) error {
	if src == nil {
		return errors.New("ocicopy: nil source storage")
	}
	if dst == nil {
		return errors.New("ocicopy: nil destination storage")
	}

	roots, err := findRoots(ctx, src, node, &opts)
	if err != nil {
		return fmt.Errorf("find roots of %s: %w", node.Digest, err)
	}
	opts.logger().Debug("roots discovered",
		zap.String("node", node.Digest.String()),
		zap.Int("count", len(roots)))

	proxy := cas.NewProxyWithLimit(src, cas.NewMemory(), opts.maxMetadataBytes())

	p := pool.New().
		WithMaxGoroutines(opts.concurrency()).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, root := range roots {
		p.Go(func(ctx context.Context) error {
			return copyGraph(ctx, proxy, dst, root, &opts.CopyGraphOptions)
		})
	}
	return p.Wait()
}

// findRoots returns the distinct roots whose sub-graphs contain node,
// walking the predecessor relation upward. A node with no predecessors
// is a root; with opts.Depth > 0, nodes at that depth are recorded as
// roots without walking further.
//
// The walk is an explicit-stack DFS so arbitrarily deep referrer chains
// cannot exhaust the call stack.
func findRoots(ctx context.Context, src store.ReadOnlyGraphStorage, node ocispec.Descriptor, opts *ExtendedCopyGraphOptions) ([]ocispec.Descriptor, error) {
	type item struct {
		node  ocispec.Descriptor
		depth int
	}

	visited := make(map[descriptor.Basic]bool)
	rootKeys := make(map[descriptor.Basic]bool)
	var roots []ocispec.Descriptor
	addRoot := func(n ocispec.Descriptor) {
		if key := descriptor.BasicOf(n); !rootKeys[key] {
			rootKeys[key] = true
			roots = append(roots, n)
		}
	}

	stack := []item{{node: node}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		key := descriptor.BasicOf(current.node)
		if visited[key] {
			continue
		}
		visited[key] = true

		if opts.Depth > 0 && current.depth == opts.Depth {
			addRoot(current.node)
			continue
		}

		predecessors, err := opts.findPredecessors(ctx, src, current.node)
		if err != nil {
			return nil, fmt.Errorf("predecessors of %s: %w", current.node.Digest, err)
		}
		if len(predecessors) == 0 {
			addRoot(current.node)
			continue
		}
		for _, p := range predecessors {
			if !visited[descriptor.BasicOf(p)] {
				stack = append(stack, item{node: p, depth: current.depth + 1})
			}
		}
	}
	return roots, nil
}
