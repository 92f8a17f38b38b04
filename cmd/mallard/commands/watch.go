package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/mallard/internal/adapters/watcher"
	"go.trai.ch/mallard/internal/app"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [targets...]",
		Short: "Rebuild whenever files below the plan root change",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workDir(cmd)
			if err != nil {
				return err
			}
			if ci, _ := cmd.Flags().GetBool("ci"); ci {
				_ = cmd.Flags().Set("output", "linear")
			}
			if err := c.selectOutput(cmd); err != nil {
				return err
			}
			window, _ := cmd.Flags().GetDuration("window")
			return c.app.Watch(cmd.Context(), cwd, app.WatchOptions{
				MakeOptions: makeOptions(cmd, args),
				Window:      window,
			})
		},
	}
	addBuildFlags(cmd)
	addOutputFlag(cmd)
	cmd.Flags().Duration("window", watcher.DefaultWindow, "Quiet period before a rebuild starts")
	return cmd
}
