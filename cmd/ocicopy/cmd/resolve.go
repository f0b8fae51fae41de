package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <ref>",
	Short: "Resolve a reference to its descriptor",
	Long:  "Resolve ref against its registry and print the root descriptor as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	repo, err := newRepository(args[0])
	if err != nil {
		return err
	}

	desc, err := repo.Resolve(context.Background(), repo.Identifier())
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}

	out, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
