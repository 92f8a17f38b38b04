package cas_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/mallard/internal/adapters/cas"
	"go.trai.ch/mallard/internal/core/domain"
)

func newStore(t *testing.T) *cas.Store {
	t.Helper()
	store, err := cas.NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func countBlobs(t *testing.T, store *cas.Store) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(filepath.Join(store.Dir(), domain.BlobsDirName), func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return n
}

func TestStore_SetGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{name: "int widens to int64", value: 2, want: int64(2)},
		{name: "large int", value: int64(1 << 40), want: int64(1 << 40)},
		{name: "float", value: 2.5, want: 2.5},
		{name: "string", value: "hello", want: "hello"},
		{name: "bool", value: true, want: true},
		{name: "nil", value: nil, want: nil},
		{name: "list", value: []any{1, "x"}, want: []any{int64(1), "x"}},
		{name: "string list", value: []string{"a", "b"}, want: []any{"a", "b"}},
		{name: "map", value: map[string]any{"k": 3}, want: map[string]any{"k": int64(3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newStore(t)

			hash, err := store.Set("v", tt.value, domain.NamespaceValues)
			require.NoError(t, err)
			assert.Len(t, hash, 16)

			got, err := store.Get("v", domain.NamespaceValues)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_Namespaces(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	_, err := store.Set("a", 1, domain.NamespaceValues)
	require.NoError(t, err)
	_, err = store.Set("a", "meta", domain.NamespaceFingerprints)
	require.NoError(t, err)

	v, err := store.Get("a", domain.NamespaceValues)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = store.Get("a", domain.NamespaceFingerprints)
	require.NoError(t, err)
	assert.Equal(t, "meta", v)

	_, err = store.Get("a", domain.NamespaceImports)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestStore_Deduplicates(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	h1, err := store.Set("a", map[string]any{"x": 1, "y": 2}, domain.NamespaceValues)
	require.NoError(t, err)
	h2, err := store.Set("b", map[string]any{"y": 2, "x": 1}, domain.NamespaceValues)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, countBlobs(t, store))

	// A later build reopening the cache produces the same entry.
	reopened, err := cas.NewStore(store.Dir())
	require.NoError(t, err)
	h3, err := reopened.Set("c", map[string]any{"x": 1, "y": 2}, domain.NamespaceValues)
	require.NoError(t, err)
	assert.Equal(t, h1, h3)
	assert.Equal(t, 1, countBlobs(t, store))
}

func TestStore_Fingerprint(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	fp := domain.Fingerprint{
		Command:      "a * 10",
		Dependencies: map[string]string{"a": "0123456789abcdef"},
		Files:        map[string]domain.FileStamp{"in.csv": {Hash: "ff", ModTime: 10, Size: 3}},
		Value:        "fedcba9876543210",
	}
	_, err := store.Set("b", fp, domain.NamespaceFingerprints)
	require.NoError(t, err)

	var got domain.Fingerprint
	require.NoError(t, store.Load("b", domain.NamespaceFingerprints, &got))
	assert.Equal(t, fp, got)
}

func TestStore_Corruption(t *testing.T) {
	t.Parallel()

	t.Run("corrupt blob", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		hash, err := store.Set("a", "value", domain.NamespaceValues)
		require.NoError(t, err)

		blob := filepath.Join(store.Dir(), domain.BlobsDirName, hash[:2], hash)
		require.NoError(t, os.WriteFile(blob, []byte{0xc1}, domain.FilePerm))

		_, err = store.Get("a", domain.NamespaceValues)
		assert.ErrorIs(t, err, domain.ErrCorruptEntry)
	})

	t.Run("corrupt record", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		_, err := store.Set("a", "value", domain.NamespaceFingerprints)
		require.NoError(t, err)

		dir := filepath.Join(store.Dir(), domain.KeysDirName, domain.NamespaceFingerprints.String())
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.NoError(t, os.WriteFile(filepath.Join(dir, entries[0].Name()), []byte("{"), domain.FilePerm))

		fresh, err := cas.NewStore(store.Dir())
		require.NoError(t, err)
		var fp domain.Fingerprint
		err = fresh.Load("a", domain.NamespaceFingerprints, &fp)
		assert.ErrorIs(t, err, domain.ErrCorruptEntry)
	})

	for name, hash := range map[string]string{
		"truncated hash": "f",
		"path in hash":   "../../../../etc",
		"uppercase hash": "ABCDEF0123456789",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := newStore(t)
			_, err := store.Set("a", "value", domain.NamespaceFingerprints)
			require.NoError(t, err)

			dir := filepath.Join(store.Dir(), domain.KeysDirName, domain.NamespaceFingerprints.String())
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			raw := []byte(`{"key":"a","hash":"` + hash + `"}`)
			require.NoError(t, os.WriteFile(filepath.Join(dir, entries[0].Name()), raw, domain.FilePerm))

			fresh, err := cas.NewStore(store.Dir())
			require.NoError(t, err)
			var fp domain.Fingerprint
			assert.NotPanics(t, func() {
				err = fresh.Load("a", domain.NamespaceFingerprints, &fp)
			})
			assert.ErrorIs(t, err, domain.ErrCorruptEntry)
			assert.False(t, fresh.Exists("a", domain.NamespaceFingerprints))

			keys, err := fresh.Keys(domain.NamespaceFingerprints)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestStore_BufferedFlush(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	_, err := store.Set("a", string(domain.StatusDone), domain.NamespaceProgress)
	require.NoError(t, err)
	assert.True(t, store.Exists("a", domain.NamespaceProgress), "staged entries are readable")

	other, err := cas.NewStore(store.Dir())
	require.NoError(t, err)
	assert.False(t, other.Exists("a", domain.NamespaceProgress), "staged entries are not on disk yet")

	require.NoError(t, store.Flush())
	assert.True(t, other.Exists("a", domain.NamespaceProgress))
}

func TestStore_KeysDeleteGC(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()

	for _, k := range []string{"b", "a", "c"} {
		_, err := store.Set(k, "value-"+k, domain.NamespaceValues)
		require.NoError(t, err)
	}
	keys, err := store.Keys(domain.NamespaceValues)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	require.NoError(t, store.Delete("b", domain.NamespaceValues))
	assert.False(t, store.Exists("b", domain.NamespaceValues))

	removed, err := store.GC(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, countBlobs(t, store))

	v, err := store.Get("a", domain.NamespaceValues)
	require.NoError(t, err)
	assert.Equal(t, "value-a", v)
}

func TestStore_MemoReset(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	_, err := store.Set("a", 1, domain.NamespaceValues)
	require.NoError(t, err)

	// Another handle rewrites the key behind this one's back.
	other, err := cas.NewStore(store.Dir())
	require.NoError(t, err)
	h2, err := other.Set("a", 2, domain.NamespaceValues)
	require.NoError(t, err)

	stale, err := store.Hash("a", domain.NamespaceValues)
	require.NoError(t, err)
	assert.NotEqual(t, h2, stale, "memoized hash is served until reset")

	store.ResetMemoHash()
	fresh, err := store.Hash("a", domain.NamespaceValues)
	require.NoError(t, err)
	assert.Equal(t, h2, fresh)
}

func TestStore_Lock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	first, err := cas.NewStore(dir)
	require.NoError(t, err)
	second, err := cas.NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, first.Lock(ctx, "build-1"))
	require.NoError(t, first.Lock(ctx, "build-1"), "locking twice from the same handle is a no-op")
	assert.True(t, first.Locked())

	err = second.Lock(ctx, "build-2")
	require.ErrorIs(t, err, domain.ErrCacheLocked)
	assert.False(t, second.Locked())

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock())
	assert.False(t, first.Locked())

	require.NoError(t, second.Lock(ctx, "build-2"))
	holder, err := second.Get("holder", domain.NamespaceLock)
	require.NoError(t, err)
	assert.Equal(t, "build-2", holder.(map[string]any)["owner"])
	require.NoError(t, second.Unlock())
}

func TestStore_ForceUnlock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	crashed, err := cas.NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, crashed.Lock(ctx, "crashed"))

	rescuer, err := cas.NewStore(dir)
	require.NoError(t, err)
	info, evicted, err := rescuer.ForceUnlock()
	require.NoError(t, err)
	assert.True(t, evicted)
	assert.Equal(t, "crashed", info.Owner)

	require.NoError(t, rescuer.Lock(ctx, "next"))
	require.NoError(t, rescuer.Unlock())

	_, evicted, err = rescuer.ForceUnlock()
	require.NoError(t, err)
	assert.False(t, evicted)
}

func TestStore_ConcurrentSet(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Set(string(rune('a'+i)), "same", domain.NamespaceValues)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	keys, err := store.Keys(domain.NamespaceValues)
	require.NoError(t, err)
	assert.Len(t, keys, 16)
	assert.Equal(t, 1, countBlobs(t, store))
}
