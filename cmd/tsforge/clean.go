package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [flags]",
	Short: "Remove build and dist output",
	Long:  "Remove the per-platform build tree and the dist directory. Pass --cache to also drop the fetched grammar checkouts.",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(cmd *cobra.Command, _ []string) error {
	dropCache, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return err
	}
	project, err := loadForgeProject(".")
	if err != nil {
		return err
	}
	dirs := []string{project.buildRoot(), project.distDir()}
	if dropCache {
		dirs = append(dirs, project.cacheDir())
	}
	removed := 0
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to stat %q: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%q is not a directory", dir)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %q: %w", dir, err)
		}
		_, _ = fmt.Fprintf(os.Stdout, "removed %s\n", dir)
		removed++
	}
	if removed == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "nothing to clean")
	}
	return nil
}

func init() {
	cleanCmd.Flags().Bool("cache", false, "also remove the grammar cache")
}
