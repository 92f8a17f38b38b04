package cas

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/zerr"
)

// lockHolderKey is the key describing the current holder in the lock namespace.
const lockHolderKey = "holder"

// Lock creates the lock flag exclusively. It fails with domain.ErrCacheLocked when another build holds it.
func (s *Store) Lock(ctx context.Context, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Locked() {
		return nil
	}

	if err := os.MkdirAll(s.root, domain.DirPerm); err != nil {
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}
	//nolint:gosec // Path is constructed from the cache root
	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, domain.PrivateFilePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			holder := s.readLockInfo()
			return zerr.With(zerr.With(domain.Detail(domain.ErrCacheLocked, "dir", s.root), "holder", holder.Owner), "pid", holder.PID)
		}
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}

	host, _ := os.Hostname()
	info := domain.LockHolder{Owner: owner, PID: os.Getpid(), Host: host, Since: time.Now().UTC()}
	encErr := json.NewEncoder(f).Encode(info)
	if err := errors.Join(encErr, f.Close()); err != nil {
		_ = os.Remove(s.lockPath())
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}

	s.mu.Lock()
	s.lockHeld = true
	s.mu.Unlock()

	holder := map[string]any{
		"owner": info.Owner,
		"pid":   info.PID,
		"host":  info.Host,
		"since": info.Since.Format(time.RFC3339),
	}
	if _, err := s.Set(lockHolderKey, holder, domain.NamespaceLock); err != nil {
		_ = s.Unlock()
		return err
	}
	return nil
}

// Unlock removes the lock flag if this store holds it.
func (s *Store) Unlock() error {
	s.mu.Lock()
	held := s.lockHeld
	s.mu.Unlock()
	if !held {
		return nil
	}
	_ = s.Delete(lockHolderKey, domain.NamespaceLock)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockHeld = false
	if err := os.Remove(s.lockPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}
	return nil
}

// Locked reports whether this store holds the lock.
func (s *Store) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockHeld
}

// ForceUnlock removes the lock flag whoever holds it, for locks left behind by crashed builds.
// It returns the holder that was evicted.
func (s *Store) ForceUnlock() (domain.LockHolder, bool, error) {
	info := s.readLockInfo()
	if err := os.Remove(s.lockPath()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.LockHolder{}, false, nil
		}
		return domain.LockHolder{}, false, zerr.Wrap(domain.ErrStorage, err.Error())
	}
	_ = s.Delete(lockHolderKey, domain.NamespaceLock)
	s.mu.Lock()
	s.lockHeld = false
	s.mu.Unlock()
	return info, true, nil
}

func (s *Store) readLockInfo() domain.LockHolder {
	var info domain.LockHolder
	//nolint:gosec // Path is constructed from the cache root
	raw, err := os.ReadFile(s.lockPath())
	if err == nil {
		_ = json.Unmarshal(raw, &info)
	}
	return info
}

func (s *Store) lockPath() string {
	return filepath.Join(s.root, domain.LockFileName)
}
