package buildctx

import (
	"context"
	"errors"
	"strconv"

	"go.trai.ch/zerr"
)

// Teardown releases everything the build owns. It runs on every exit path:
// scopes and bookkeeping tables are cleared, buffered cache writes are flushed,
// garbage is collected when requested and the cache lock is always released.
// Garbage is only collected while this build holds the lock.
func (c *Context) Teardown(ctx context.Context) error {
	c.TargetScope.Clear()
	c.DynamicScope.Clear()
	c.ImportScope.Clear()
	c.Tables.Clear()
	c.Cache.ResetMemoHash()

	var errs []error
	if err := c.Cache.Flush(); err != nil {
		errs = append(errs, zerr.Wrap(err, "failed to flush cache"))
	}

	switch {
	case !c.GarbageCollect:
	case !c.Cache.Locked():
		c.Logger.Debug("skipping garbage collection: cache lock not held")
	default:
		removed, err := c.Cache.GC(context.WithoutCancel(ctx))
		if err != nil {
			errs = append(errs, zerr.Wrap(err, "garbage collection failed"))
		} else if removed > 0 {
			c.Logger.Debug("garbage collection removed " + strconv.Itoa(removed) + " values")
		}
	}

	if c.Cache.Locked() {
		if err := c.Cache.Unlock(); err != nil {
			errs = append(errs, zerr.Wrap(err, "failed to release cache lock"))
		}
	}
	return errors.Join(errs...)
}
