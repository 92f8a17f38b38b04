// Package fs inspects the files targets declare as dependencies.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/mallard/internal/core/domain"
)

// Walker yields the regular files below a directory.
type Walker struct {
	ignores []string
}

// NewWalker creates a Walker skipping entries whose base name matches one of ignores.
func NewWalker(ignores ...string) *Walker {
	return &Walker{ignores: ignores}
}

// WalkFiles yields every file under root in lexical order.
// Version control metadata and the mallard workspace are never entered.
func (w *Walker) WalkFiles(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && w.skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if w.ignored(d.Name()) {
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Walker) skipDir(name string) bool {
	switch name {
	case ".git", ".jj", domain.MallardDirName:
		return true
	}
	return w.ignored(name)
}

func (w *Walker) ignored(name string) bool {
	for _, pattern := range w.ignores {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
