package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/ocicopy"
	"github.com/aweris/ocicopy/store/file"
)

var pullCmd = &cobra.Command{
	Use:   "pull <ref>",
	Short: "Pull an artifact graph into the local store",
	Long:  "Copy the artifact graph rooted at ref from its registry into the local file store.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)
}

func runPull(cmd *cobra.Command, args []string) (err error) {
	src, err := newRepository(args[0])
	if err != nil {
		return err
	}

	dst, err := file.Open(getStoreDir())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	fmt.Fprintf(os.Stderr, "Pulling %s...\n", src)

	root, err := ocicopy.Copy(context.Background(), src, src.Identifier(), dst, src.String(), copyOptions())
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Done. Root: %s\n", root.Digest)
	return nil
}
