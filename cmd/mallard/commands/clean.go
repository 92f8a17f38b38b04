package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/mallard/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := workDir(cmd)
			if err != nil {
				return err
			}
			cacheDir, _ := cmd.Flags().GetString("cache-dir")
			gcOnly, _ := cmd.Flags().GetBool("gc")
			return c.app.Clean(cmd.Context(), cwd, app.CleanOptions{CacheDir: cacheDir, GCOnly: gcOnly})
		},
	}
	cmd.Flags().String("cache-dir", "", "Cache directory, relative to the plan root")
	cmd.Flags().Bool("gc", false, "Only remove values no key refers to")
	return cmd
}

func (c *CLI) newUnlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Release a cache lock left behind by an interrupted build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := workDir(cmd)
			if err != nil {
				return err
			}
			cacheDir, _ := cmd.Flags().GetString("cache-dir")
			return c.app.Unlock(cmd.Context(), cwd, cacheDir)
		},
	}
	cmd.Flags().String("cache-dir", "", "Cache directory, relative to the plan root")
	return cmd
}
