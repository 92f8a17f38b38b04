// Package outdated decides which targets must be rebuilt.
package outdated

import (
	"context"
	"errors"

	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/engine/buildctx"
)

// Fingerprint computes the current fingerprint of t.
// Dependency hashes are read from the cache; a dependency without a stored value hashes to "".
// An import loaded into the imports scope is hashed from that value instead.
// A file that cannot be stamped gets a zero stamp, so a missing file differs from any present one.
func Fingerprint(ctx context.Context, bc *buildctx.Context, t *domain.Target) (*domain.Fingerprint, error) {
	fp := &domain.Fingerprint{
		Command:      t.Command,
		Dependencies: make(map[string]string, len(t.Dependencies)),
		Files:        make(map[string]domain.FileStamp, len(t.Files)),
	}
	if t.Dynamic() {
		fp.MapOver = t.MapOver.String()
	}

	for _, dep := range t.Dependencies {
		hash, err := dependencyHash(bc, dep)
		if err != nil {
			return nil, err
		}
		fp.Dependencies[dep.String()] = hash
	}

	for _, file := range t.Files {
		stamp, err := bc.Files.Stamp(ctx, bc.ResolvePath(file.String()))
		if err != nil {
			bc.Logger.Debug("cannot stamp " + file.String() + ": " + err.Error())
			stamp = domain.FileStamp{}
		}
		fp.Files[file.String()] = stamp
	}
	return fp, nil
}

// neverBuilt reports whether err means the entry is absent or unreadable.
// Both are treated as if the target had never been built.
func neverBuilt(err error) bool {
	return errors.Is(err, domain.ErrCacheMiss) || errors.Is(err, domain.ErrCorruptEntry)
}

func dependencyHash(bc *buildctx.Context, dep domain.InternedString) (string, error) {
	ns := domain.NamespaceValues
	if bc.Graph.IsImport(dep) {
		if v, ok := bc.ImportScope.Get(dep.String()); ok {
			return bc.Cache.HashValue(v)
		}
		ns = domain.NamespaceImports
	}
	hash, err := bc.Cache.Hash(dep.String(), ns)
	if err != nil && !neverBuilt(err) {
		return "", err
	}
	return hash, nil
}
