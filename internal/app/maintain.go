package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
)

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	CacheDir string
	// GCOnly keeps the cache and only removes values no key refers to.
	GCOnly bool
}

// Clean removes the cache of the plan found from cwd.
// It refuses to touch a cache another build holds.
func (a *App) Clean(ctx context.Context, cwd string, opts CleanOptions) (err error) {
	cache, err := a.openCache(cwd, opts.CacheDir)
	if err != nil {
		return err
	}
	if err := cache.Lock(ctx, "clean"); err != nil {
		return err
	}
	defer func() {
		if cache.Locked() {
			err = errors.Join(err, cache.Unlock())
		}
	}()

	if opts.GCOnly {
		removed, err := cache.GC(ctx)
		if err != nil {
			return err
		}
		a.logger.Info(fmt.Sprintf("removed %d unreferenced values", removed))
		return nil
	}

	a.logger.Info("removing cache " + cache.Dir() + "...")
	if err := cache.Unlock(); err != nil {
		return err
	}
	if err := os.RemoveAll(cache.Dir()); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove cache"), "dir", cache.Dir())
	}
	a.logger.Info("removed cache")
	return nil
}

// Unlock force-releases the cache lock left behind by a build that did not exit cleanly.
func (a *App) Unlock(_ context.Context, cwd, cacheDir string) error {
	cache, err := a.openCache(cwd, cacheDir)
	if err != nil {
		return err
	}
	holder, held, err := cache.ForceUnlock()
	if err != nil {
		return err
	}
	if !held {
		a.logger.Info("cache was not locked")
		return nil
	}
	a.logger.Info(fmt.Sprintf("released lock held by %s (pid %d on %s since %s)",
		holder.Owner, holder.PID, holder.Host, holder.Since.Format("2006-01-02 15:04:05")))
	return nil
}

// Dump writes the cache entries of namespaces as text to w.
func (a *App) Dump(ctx context.Context, cwd, cacheDir string, w io.Writer, namespaces []domain.Namespace) error {
	cache, err := a.openCache(cwd, cacheDir)
	if err != nil {
		return err
	}
	return a.recorder(cache).Dump(ctx, w, namespaces)
}

func (a *App) openCache(cwd, override string) (ports.Cache, error) {
	plan, err := a.loader.Load(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load plan")
	}
	cache, err := a.caches.Open(cacheDir(plan, override))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open cache")
	}
	return cache, nil
}
