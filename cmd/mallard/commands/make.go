package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/mallard/internal/core/domain"
)

func (c *CLI) newMakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "make [targets...]",
		Short: "Build the outdated targets of the plan",
		Long: "Build the outdated targets of the plan. Without arguments every target is considered;\n" +
			"named targets are built together with their dependencies.",
		Args: cobra.ArbitraryArgs,
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
			opts := makeOptions(cmd, args)
			opts.MetricsFile, _ = cmd.Flags().GetString("metrics-file")
			if dump, _ := cmd.Flags().GetBool("dump"); dump {
				opts.Dump = cmd.OutOrStdout()
				names, _ := cmd.Flags().GetStringSlice("dump-namespace")
				opts.DumpNamespaces = domain.ParseNamespaces(names)
			}

			report, err := c.app.Make(cmd.Context(), cwd, opts)
			if report != nil {
				printSummary(cmd.ErrOrStderr(), report)
			}
			return err
		},
	}
	addBuildFlags(cmd)
	addOutputFlag(cmd)
	cmd.Flags().String("metrics-file", os.Getenv("MALLARD_METRICS_FILE"), "Write build metrics in the Prometheus text format")
	cmd.Flags().Bool("dump", false, "Print the cache contents after the build")
	cmd.Flags().StringSlice("dump-namespace", nil, "Namespaces printed by --dump (default all)")
	return cmd
}

func printSummary(w io.Writer, r *domain.Report) {
	_, _ = fmt.Fprintf(w, "%d built, %d up to date, %d failed, %d skipped, %d cancelled\n",
		len(r.Succeeded), len(r.UpToDate), len(r.Failed), len(r.Skipped), len(r.Cancelled))
}
