package commands

import (
	"net"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

// DefaultWorkerAddr is where workers listen unless told otherwise.
const DefaultWorkerAddr = ":7878"

func (c *CLI) newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Evaluate targets for distributed builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("listen")
			var lc net.ListenConfig
			lis, err := lc.Listen(cmd.Context(), "tcp", addr)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to listen"), "addr", addr)
			}
			return c.app.ServeWorker(cmd.Context(), lis)
		},
	}
	cmd.Flags().StringP("listen", "l", DefaultWorkerAddr, "Address to accept builds on")
	return cmd
}
