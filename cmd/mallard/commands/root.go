// Package commands implements the CLI commands for the mallard build engine.
package commands

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.trai.ch/mallard/internal/app"
	"go.trai.ch/mallard/internal/build"
	"go.trai.ch/mallard/internal/core/domain"
)

// CLI represents the command line interface for mallard.
type CLI struct {
	app     Application
	log     LogSettings
	output  OutputSelector
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Make(ctx context.Context, cwd string, opts app.MakeOptions) (*domain.Report, error)
	Outdated(ctx context.Context, cwd string, opts app.MakeOptions) ([]string, error)
	Clean(ctx context.Context, cwd string, opts app.CleanOptions) error
	Unlock(ctx context.Context, cwd, cacheDir string) error
	Dump(ctx context.Context, cwd, cacheDir string, w io.Writer, namespaces []domain.Namespace) error
	Watch(ctx context.Context, cwd string, opts app.WatchOptions) error
	ServeWorker(ctx context.Context, lis net.Listener) error
}

// LogSettings is implemented by loggers whose verbosity and format can change at runtime.
type LogSettings interface {
	SetVerbose(enable bool)
	SetJSON(enable bool)
}

// OutputSelector is implemented by renderers that can switch between output modes.
type OutputSelector interface {
	SetMode(mode string) error
}

// New creates a new CLI instance with the given app. log and output may be nil.
func New(a Application, log LogSettings, output OutputSelector) *CLI {
	rootCmd := &cobra.Command{
		Use:           "mallard",
		Short:         "An incremental build engine for data pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("dir", "C", ".", "Directory to search for the plan file from")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON")

	c := &CLI{
		app:     a,
		log:     log,
		output:  output,
		rootCmd: rootCmd,
	}
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		if c.log == nil {
			return
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		jsonLog, _ := cmd.Flags().GetBool("json-log")
		c.log.SetVerbose(verbose)
		c.log.SetJSON(jsonLog)
	}

	rootCmd.AddCommand(c.newMakeCmd())
	rootCmd.AddCommand(c.newOutdatedCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newUnlockCmd())
	rootCmd.AddCommand(c.newDumpCmd())
	rootCmd.AddCommand(c.newWorkerCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// selectOutput applies the --output flag of cmd.
func (c *CLI) selectOutput(cmd *cobra.Command) error {
	if c.output == nil {
		return nil
	}
	mode, _ := cmd.Flags().GetString("output")
	return c.output.SetMode(mode)
}

// workDir resolves the --dir flag to an absolute path.
func workDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", domain.Detail(domain.ErrMalformedContext, "dir", dir)
	}
	return abs, nil
}
