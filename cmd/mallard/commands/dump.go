package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/mallard/internal/core/domain"
)

func (c *CLI) newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "dump [namespaces...]",
		Short:     "Print the keys and hashes stored in the cache",
		Args:      cobra.OnlyValidArgs,
		ValidArgs: namespaceNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := workDir(cmd)
			if err != nil {
				return err
			}
			cacheDir, _ := cmd.Flags().GetString("cache-dir")
			return c.app.Dump(cmd.Context(), cwd, cacheDir, cmd.OutOrStdout(), domain.ParseNamespaces(args))
		},
	}
	cmd.Flags().String("cache-dir", "", "Cache directory, relative to the plan root")
	return cmd
}

func namespaceNames() []string {
	names := make([]string, len(domain.Namespaces))
	for i, ns := range domain.Namespaces {
		names[i] = ns.String()
	}
	return names
}
