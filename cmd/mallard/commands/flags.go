package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/mallard/internal/app"
)

// addBuildFlags registers the flags shared by every command that plans a build.
// Unset flags fall back to the settings of the plan file.
func addBuildFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("strategy", "s", "", "Scheduling strategy: sequential, pool or distributed")
	f.IntP("jobs", "j", 0, "Maximum number of targets built at once")
	f.Int("retries", 0, "Retries after a failed attempt")
	f.String("backoff", "", "Delay between retries: exponential, linear, constant or none")
	f.Duration("backoff-delay", 0, "Base delay of the retry backoff")
	f.Duration("timeout", 0, "Wall time cap of a single attempt")
	f.Duration("elapsed", 0, "Elapsed time cap of a single attempt")
	f.Duration("cpu", 0, "CPU time cap of a single attempt")
	f.BoolP("keep-going", "k", false, "Keep building independent targets after a failure")
	f.Bool("no-lock-scopes", false, "Allow commands to create new bindings")
	f.Bool("no-lock-cache", false, "Do not take the cache lock")
	f.Bool("gc", false, "Remove unreferenced values after the build")
	f.Bool("skip-safety-checks", false, "Skip the checks run before a build")
	f.StringSlice("trigger", nil, "Components that invalidate a target: command, depend, file, mtime, always or never")
	f.String("cache-dir", "", "Cache directory, relative to the plan root")
	f.StringSlice("workers", nil, "Worker addresses for the distributed strategy")
}

// addOutputFlag registers the output mode flag of commands that render builds.
func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "auto", "Output mode: auto, tui or linear")
	cmd.Flags().Bool("ci", false, "Use linear output (shorthand for --output=linear)")
}

// makeOptions reads the flags of addBuildFlags.
func makeOptions(cmd *cobra.Command, targets []string) app.MakeOptions {
	f := cmd.Flags()
	var opts app.MakeOptions
	opts.Targets = targets
	opts.Strategy, _ = f.GetString("strategy")
	opts.Jobs, _ = f.GetInt("jobs")
	if f.Changed("retries") {
		retries, _ := f.GetInt("retries")
		opts.Retries = &retries
	}
	opts.Backoff, _ = f.GetString("backoff")
	opts.BackoffDelay, _ = f.GetDuration("backoff-delay")
	opts.Timeout, _ = f.GetDuration("timeout")
	opts.Elapsed, _ = f.GetDuration("elapsed")
	opts.CPU, _ = f.GetDuration("cpu")
	opts.KeepGoing, _ = f.GetBool("keep-going")
	opts.NoLockScopes, _ = f.GetBool("no-lock-scopes")
	opts.NoLockCache, _ = f.GetBool("no-lock-cache")
	opts.GarbageCollect, _ = f.GetBool("gc")
	opts.SkipSafetyChecks, _ = f.GetBool("skip-safety-checks")
	opts.Trigger, _ = f.GetStringSlice("trigger")
	opts.CacheDir, _ = f.GetString("cache-dir")
	opts.Workers, _ = f.GetStringSlice("workers")
	return opts
}
