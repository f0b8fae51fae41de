package cmd

import (
	"context"
	"fmt"
	"os"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/cobra"

	"github.com/aweris/ocicopy"
	"github.com/aweris/ocicopy/remote"
)

var copyCmd = &cobra.Command{
	Use:   "copy <src-ref> <dst-ref>",
	Short: "Copy an artifact graph between registries",
	Long:  "Copy the artifact graph rooted at src-ref into the repository of dst-ref and tag it there.",
	Args:  cobra.ExactArgs(2),
	RunE:  runCopy,
}

func init() {
	rootCmd.AddCommand(copyCmd)
}

func runCopy(cmd *cobra.Command, args []string) error {
	src, err := newRepository(args[0])
	if err != nil {
		return err
	}
	dst, err := newRepository(args[1])
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Copying %s to %s...\n", src, dst)

	root, err := ocicopy.Copy(context.Background(), src, src.Identifier(), dst, dst.Identifier(), copyOptions())
	if err != nil {
		return fmt.Errorf("copy failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done. Root: %s\n", root.Digest)
	return nil
}

func newRepository(ref string) (*remote.Repository, error) {
	var opts []remote.Option
	if plainHTTP() {
		opts = append(opts, remote.WithPlainHTTP())
	}
	return remote.NewRepository(ref, opts...)
}

func copyOptions() ocicopy.CopyOptions {
	opts := ocicopy.CopyOptions{}
	opts.Logger = getLogger()
	opts.PostCopy = func(_ context.Context, desc ocispec.Descriptor) error {
		fmt.Fprintf(os.Stderr, "  copied %s (%s, %d bytes)\n", desc.Digest, desc.MediaType, desc.Size)
		return nil
	}
	opts.OnCopySkipped = func(_ context.Context, desc ocispec.Descriptor) error {
		fmt.Fprintf(os.Stderr, "  exists %s\n", desc.Digest)
		return nil
	}
	return opts
}
