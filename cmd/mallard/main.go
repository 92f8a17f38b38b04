// Package main is the entry point for the mallard build engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/mallard/cmd/mallard/commands"
	"go.trai.ch/mallard/internal/app"
	"go.trai.ch/mallard/internal/core/domain"
	_ "go.trai.ch/mallard/internal/wiring"
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stdout, stderr io.Writer,
	provider ComponentProvider,
	opts ...func(*app.App),
) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, cleanup, err := provider(ctx)
	if err != nil {
		// The logger is not available yet.
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	defer cleanup()

	for _, opt := range opts {
		opt(components.App)
	}

	var log commands.LogSettings
	if l, ok := components.Logger.(commands.LogSettings); ok {
		log = l
	}
	var output commands.OutputSelector
	if o, ok := components.Renderer.(commands.OutputSelector); ok {
		output = o
	}
	cli := commands.New(components.App, log, output)
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		// Target failures were already reported by the renderer and the summary.
		if errors.Is(err, domain.ErrBuildFailed) && domain.Classify(err) != domain.ClassInfrastructure {
			return 1
		}
		components.Logger.Error(err)
		return 1
	}
	return 0
}
