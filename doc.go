// Package ocicopy copies content-addressable artifact graphs between
// content stores: local, in-memory, or OCI registries.
//
// Content is identified by OCI descriptors and organized as a rooted DAG
// of manifests, indexes, and blobs. The engine copies graphs depth-first,
// successors before the nodes referencing them, so a destination never
// sees a manifest whose referenced content is missing.
//
// Basic copy between two stores:
//
//	src := memory.New()
//	dst, _ := file.Open("/var/lib/artifacts")
//
//	// ... push blobs and a manifest into src, tag it "v1" ...
//
//	root, _ := ocicopy.Copy(ctx, src, "v1", dst, "", ocicopy.CopyOptions{})
//	fmt.Println("copied", root.Digest)
//
// Copy from a registry:
//
//	repo, _ := remote.NewRepository("ghcr.io/example/app")
//	ocicopy.Copy(ctx, repo, "latest", dst, "latest", ocicopy.CopyOptions{})
//
// Extended copy starts from an arbitrary node, discovers every DAG root
// reaching it by walking predecessors, and copies the discovered
// sub-graphs with bounded parallelism:
//
//	ocicopy.ExtendedCopyGraph(ctx, src, dst, layerDesc, ocicopy.ExtendedCopyGraphOptions{
//		Concurrency: 4,
//	})
package ocicopy
