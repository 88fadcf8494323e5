package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/landmetrics/eftrich/pkg/pipeline"
)

// cacheCommand creates the cache management command. The fingerprint cache
// lives inside a workspace, so every subcommand takes --workspace.
func (c *CLI) cacheCommand() *cobra.Command {
	workspace := pipeline.DefaultWorkspace

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the workspace fingerprint cache",
		Long: `Manage the fingerprint cache that lets re-runs skip tasks whose output
rasters are already up to date. Clearing it forces the next run to rebuild
everything; the rasters themselves are untouched.`,
	}
	cmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", workspace, "workspace holding the cache")

	cmd.AddCommand(cacheClearCommand(&workspace))
	cmd.AddCommand(cachePathCommand(&workspace))

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func cacheClearCommand(workspace *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all recorded task fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cacheDir(*workspace)

			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}

			count := 0
			err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil || path == dir {
					return nil
				}
				if !info.IsDir() {
					if err := os.Remove(path); err == nil {
						count++
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			// Clean up empty shard subdirectories
			_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil || path == dir {
					return nil
				}
				if info.IsDir() {
					os.Remove(path)
				}
				return nil
			})

			printSuccess("Cleared %d recorded fingerprints", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func cachePathCommand(workspace *string) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(cacheDir(*workspace))
			return nil
		},
	}
}
