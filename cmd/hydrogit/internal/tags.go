package internal

import (
	"context"
	"fmt"

	"github.com/gydrogen/hydrogit/internal/env"
	"github.com/gydrogen/hydrogit/internal/vcs"
	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags <repo-url>",
	Short: "List the tags of a repository, oldest release first",
	Long: `Tags lists the tags of a remote repository, semantic versions first in
version order, then the rest in GNU version order (release-2 before
release-10). Use them as version arguments.`,
	Args: cobra.ExactArgs(1),
	RunE: runTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, args []string) error {
	cfg, err := env.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tags, err := vcs.NewGitVCS(vcs.WithGitPath(cfg.Git)).Tags(ctx, args[0])
	if err != nil {
		return err
	}
	vcs.SortTags(tags)
	for _, tag := range tags {
		fmt.Fprintln(cmd.OutOrStdout(), tag)
	}
	return nil
}
