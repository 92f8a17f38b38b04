package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newOutdatedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outdated [targets...]",
		Short: "List the targets the next build would run",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workDir(cmd)
			if err != nil {
				return err
			}
			names, err := c.app.Outdated(cmd.Context(), cwd, makeOptions(cmd, args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				_, _ = fmt.Fprintln(out, name)
			}
			return nil
		},
	}
	addBuildFlags(cmd)
	return cmd
}
