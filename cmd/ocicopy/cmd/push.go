package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/ocicopy"
	"github.com/aweris/ocicopy/store/file"
)

var pushCmd = &cobra.Command{
	Use:   "push <ref>",
	Short: "Push an artifact graph from the local store",
	Long:  "Copy the artifact graph pulled as ref from the local file store back to its registry.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

func init() {
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) (err error) {
	dst, err := newRepository(args[0])
	if err != nil {
		return err
	}

	src, err := file.Open(getStoreDir())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	fmt.Fprintf(os.Stderr, "Pushing %s...\n", dst)

	root, err := ocicopy.Copy(context.Background(), src, dst.String(), dst, dst.Identifier(), copyOptions())
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done. Root: %s\n", root.Digest)
	return nil
}
