// Package preflight validates a build context before any target runs.
package preflight

import (
	"context"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/engine/buildctx"
)

// Run performs the checks that must pass before scheduling.
// The cache location check is fatal and always runs; the others only warn
// and are skipped when safety checks are disabled.
func Run(ctx context.Context, bc *buildctx.Context) error {
	if err := CacheLocation(bc); err != nil {
		return err
	}
	if bc.SkipChecks {
		return nil
	}
	MissingInputFiles(ctx, bc)
	SubdirectoryHazard(bc)
	return nil
}

// CacheLocation rejects a cache rooted at the working directory itself.
func CacheLocation(bc *buildctx.Context) error {
	if filepath.Clean(bc.Cache.Dir()) == filepath.Clean(bc.WorkDir) {
		return domain.Detail(domain.ErrCacheIsWorkingDir, "dir", bc.WorkDir)
	}
	return nil
}

// MissingInputFiles warns once for every declared file dependency that does not resolve.
// It returns the unresolved paths in sorted order.
func MissingInputFiles(ctx context.Context, bc *buildctx.Context) []string {
	seen := make(map[string]bool)
	for t := range bc.Graph.Walk() {
		for _, f := range t.Files {
			seen[f.String()] = true
		}
	}

	var missing []string
	for _, path := range slices.Sorted(maps.Keys(seen)) {
		if ctx.Err() != nil {
			break
		}
		if !bc.Files.Exists(ctx, bc.ResolvePath(path)) {
			missing = append(missing, path)
			bc.Logger.Warn("missing input file: " + path)
		}
	}
	return missing
}

// SubdirectoryHazard warns when the build runs from below the project that owns the cache.
// Relative file dependencies would then resolve against the wrong directory.
func SubdirectoryHazard(bc *buildctx.Context) bool {
	owner := filepath.Dir(filepath.Clean(bc.Cache.Dir()))
	if filepath.Base(owner) == domain.MallardDirName {
		owner = filepath.Dir(owner)
	}
	rel, err := filepath.Rel(owner, filepath.Clean(bc.WorkDir))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	bc.Logger.Warn("running from " + rel + " below the cache owner " + owner + "; relative file dependencies resolve against the plan root")
	return true
}
