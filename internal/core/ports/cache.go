// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/mallard/internal/core/domain"
)

// Cache is the namespaced, content-addressable store shared by a whole build.
type Cache interface {
	// Dir returns the directory the cache is rooted at.
	Dir() string

	// Lock acquires exclusive use of the cache for one build.
	// It returns domain.ErrCacheLocked if another build holds it.
	Lock(ctx context.Context, owner string) error
	// Unlock releases the lock. Releasing an unheld lock is a no-op.
	Unlock() error
	// Locked reports whether this handle holds the lock.
	Locked() bool
	// ForceUnlock removes the lock whoever holds it and returns the evicted holder.
	// The boolean is false when the cache was not locked.
	ForceUnlock() (domain.LockHolder, bool, error)

	// Set stores value under key in ns and returns the hash of its serialized form.
	Set(key string, value any, ns domain.Namespace) (string, error)
	// Get returns the value stored under key in ns.
	// It returns domain.ErrCacheMiss when absent and domain.ErrCorruptEntry when unreadable.
	Get(key string, ns domain.Namespace) (any, error)
	// Load decodes the value stored under key in ns into out.
	Load(key string, ns domain.Namespace, out any) error
	// Hash returns the content hash recorded for key in ns without decoding the value.
	Hash(key string, ns domain.Namespace) (string, error)
	// Exists reports whether key is present in ns.
	Exists(key string, ns domain.Namespace) bool
	// Delete removes key from ns. The stored value is reclaimed by GC.
	Delete(key string, ns domain.Namespace) error
	// Keys lists the keys of ns in sorted order.
	Keys(ns domain.Namespace) ([]string, error)

	// HashValue returns the content hash value would be stored under.
	HashValue(value any) (string, error)
	// ResetMemoHash clears the in-memory hash memo.
	ResetMemoHash()

	// Flush writes buffered entries to disk.
	Flush() error
	// GC removes stored values that no key refers to and returns how many were removed.
	GC(ctx context.Context) (int, error)
}

// CacheOpener opens the cache rooted at a directory.
type CacheOpener interface {
	Open(dir string) (Cache, error)
}
