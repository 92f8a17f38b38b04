// Package cas implements the namespaced content addressable cache.
//
// Values are serialized with msgpack and stored once under the xxhash of their
// serialized form. Every namespaced key is a small record pointing at a value hash,
// so identical values produced by different targets or different builds share one blob.
package cas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
)

// record is the on-disk form of a namespaced key.
type record struct {
	Key  string `json:"key"`
	Hash string `json:"hash"`
}

type memoKey struct {
	ns  domain.Namespace
	key string
}

// Store implements ports.Cache on a directory.
type Store struct {
	root string

	mu       sync.RWMutex
	memo     map[memoKey]string
	staged   map[domain.Namespace]map[string]string
	buffered map[domain.Namespace]bool
	lockHeld bool
}

// Option configures a Store.
type Option func(*Store)

// WithBuffered stages writes to the given namespaces in memory until Flush.
func WithBuffered(namespaces ...domain.Namespace) Option {
	return func(s *Store) {
		for _, ns := range namespaces {
			s.buffered[ns] = true
		}
	}
}

// NewStore creates a cache rooted at dir.
// By default the progress and session namespaces are buffered.
func NewStore(dir string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve cache directory")
	}
	s := &Store{
		root:     abs,
		memo:     make(map[memoKey]string),
		staged:   make(map[domain.Namespace]map[string]string),
		buffered: make(map[domain.Namespace]bool),
	}
	if len(opts) == 0 {
		opts = []Option{WithBuffered(domain.NamespaceProgress, domain.NamespaceSession)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory the cache is rooted at.
func (s *Store) Dir() string {
	return s.root
}

// Set stores value under key in ns and returns its content hash.
func (s *Store) Set(key string, value any, ns domain.Namespace) (string, error) {
	data, hash, err := encode(value)
	if err != nil {
		return "", err
	}
	if err := s.writeBlob(hash, data); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.memo[memoKey{ns, key}] = hash
	if s.buffered[ns] {
		if s.staged[ns] == nil {
			s.staged[ns] = make(map[string]string)
		}
		s.staged[ns][key] = hash
		s.mu.Unlock()
		return hash, nil
	}
	s.mu.Unlock()

	if err := s.writeRecord(ns, key, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// Get returns the value stored under key in ns.
func (s *Store) Get(key string, ns domain.Namespace) (any, error) {
	data, err := s.read(key, ns)
	if err != nil {
		return nil, err
	}
	v, err := decode(data)
	if err != nil {
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrCorruptEntry, err.Error()), "namespace", ns.String()), "key", key)
	}
	return v, nil
}

// Load decodes the value stored under key in ns into out.
func (s *Store) Load(key string, ns domain.Namespace, out any) error {
	data, err := s.read(key, ns)
	if err != nil {
		return err
	}
	if err := decodeInto(data, out); err != nil {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrCorruptEntry, err.Error()), "namespace", ns.String()), "key", key)
	}
	return nil
}

// Hash returns the content hash recorded for key in ns.
func (s *Store) Hash(key string, ns domain.Namespace) (string, error) {
	s.mu.RLock()
	if h, ok := s.memo[memoKey{ns, key}]; ok {
		s.mu.RUnlock()
		return h, nil
	}
	if h, ok := s.staged[ns][key]; ok {
		s.mu.RUnlock()
		return h, nil
	}
	s.mu.RUnlock()

	//nolint:gosec // Path is constructed from the cache root and a hashed filename
	raw, err := os.ReadFile(s.recordPath(ns, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", zerr.With(zerr.With(zerr.Wrap(domain.ErrCacheMiss, ""), "namespace", ns.String()), "key", key)
		}
		return "", zerr.Wrap(domain.ErrStorage, err.Error())
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || !validHash(rec.Hash) {
		return "", zerr.With(zerr.With(zerr.Wrap(domain.ErrCorruptEntry, "unreadable key record"), "namespace", ns.String()), "key", key)
	}

	s.mu.Lock()
	s.memo[memoKey{ns, key}] = rec.Hash
	s.mu.Unlock()
	return rec.Hash, nil
}

// Exists reports whether key is present in ns.
func (s *Store) Exists(key string, ns domain.Namespace) bool {
	_, err := s.Hash(key, ns)
	return err == nil
}

// Delete removes key from ns.
func (s *Store) Delete(key string, ns domain.Namespace) error {
	s.mu.Lock()
	delete(s.memo, memoKey{ns, key})
	delete(s.staged[ns], key)
	s.mu.Unlock()

	if err := os.Remove(s.recordPath(ns, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}
	return nil
}

// Keys lists the keys of ns in sorted order, staged ones included.
func (s *Store) Keys(ns domain.Namespace) ([]string, error) {
	recs, err := s.records(ns)
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(recs)), nil
}

// HashValue returns the content hash value would be stored under.
func (s *Store) HashValue(value any) (string, error) {
	_, hash, err := encode(value)
	return hash, err
}

// ResetMemoHash clears the in-memory key to hash memo.
func (s *Store) ResetMemoHash() {
	s.mu.Lock()
	clear(s.memo)
	s.mu.Unlock()
}

// Flush writes staged records to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	staged := s.staged
	s.staged = make(map[domain.Namespace]map[string]string)
	s.mu.Unlock()

	var errs []error
	for ns, entries := range staged {
		for key, hash := range entries {
			if err := s.writeRecord(ns, key, hash); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// GC removes blobs no record refers to.
func (s *Store) GC(ctx context.Context) (int, error) {
	live := make(map[string]bool)
	for _, ns := range domain.Namespaces {
		recs, err := s.records(ns)
		if err != nil {
			return 0, err
		}
		for _, h := range recs {
			live[h] = true
		}
	}

	removed := 0
	blobs := filepath.Join(s.root, domain.BlobsDirName)
	err := filepath.WalkDir(blobs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if live[name] && !strings.Contains(name, ".tmp.") {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, zerr.Wrap(domain.ErrStorage, err.Error())
	}
	return removed, nil
}

func (s *Store) read(key string, ns domain.Namespace) ([]byte, error) {
	hash, err := s.Hash(key, ns)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // Path is constructed from the cache root and a content hash
	data, err := os.ReadFile(s.blobPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrCorruptEntry, "value missing for key"), "namespace", ns.String()), "key", key)
		}
		return nil, zerr.Wrap(domain.ErrStorage, err.Error())
	}
	return data, nil
}

// records returns key to hash for ns, staged entries overriding disk ones.
func (s *Store) records(ns domain.Namespace) (map[string]string, error) {
	out := make(map[string]string)
	dir := filepath.Join(s.root, domain.KeysDirName, ns.String())
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, zerr.Wrap(domain.ErrStorage, err.Error())
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		//nolint:gosec // Path is constructed from the cache root and a directory listing
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var rec record
		if json.Unmarshal(raw, &rec) != nil || !validHash(rec.Hash) {
			continue
		}
		out[rec.Key] = rec.Hash
	}

	s.mu.RLock()
	maps.Copy(out, s.staged[ns])
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) writeBlob(hash string, data []byte) error {
	path := s.blobPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}
	if err := writeFileAtomic(path, data, domain.FilePerm); err != nil {
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}
	return nil
}

func (s *Store) writeRecord(ns domain.Namespace, key, hash string) error {
	data, err := json.Marshal(record{Key: key, Hash: hash})
	if err != nil {
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}
	path := s.recordPath(ns, key)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}
	if err := writeFileAtomic(path, data, domain.FilePerm); err != nil {
		return zerr.Wrap(domain.ErrStorage, err.Error())
	}
	return nil
}

func (s *Store) recordPath(ns domain.Namespace, key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(s.root, domain.KeysDirName, ns.String(), hex.EncodeToString(hash[:])+".json")
}

// blobPath shards blobs by the first two hash characters.
func (s *Store) blobPath(hash string) string {
	return filepath.Join(s.root, domain.BlobsDirName, hash[:2], hash)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Opener opens stores. It is the injectable form of NewStore.
type Opener struct {
	opts []Option
}

// NewOpener creates an opener applying opts to every store.
func NewOpener(opts ...Option) *Opener {
	return &Opener{opts: opts}
}

// Open opens the cache rooted at dir.
func (o *Opener) Open(dir string) (ports.Cache, error) {
	return NewStore(dir, o.opts...)
}
