package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/zerr"
)

// Hasher computes content stamps for local files and directories.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(domain.ErrFileOpenFailed, err.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(domain.ErrFileHashFailed, err.Error()), "path", path)
	}

	return hasher.Sum64(), nil
}

// Stamp returns the stamp of a file, or the combined stamp of every file below a directory.
// A directory's hash covers relative paths and contents; its ModTime is the newest file's.
func (h *Hasher) Stamp(path string) (domain.FileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.FileStamp{}, zerr.With(zerr.Wrap(domain.ErrPathStatFailed, err.Error()), "path", path)
	}

	if !info.IsDir() {
		sum, err := h.ComputeFileHash(path)
		if err != nil {
			return domain.FileStamp{}, err
		}
		return domain.FileStamp{
			Hash:    fmt.Sprintf("%016x", sum),
			ModTime: info.ModTime().UnixNano(),
			Size:    info.Size(),
		}, nil
	}

	digest := xxhash.New()
	stamp := domain.FileStamp{}
	for file := range h.walker.WalkFiles(path) {
		fi, err := os.Stat(file)
		if err != nil {
			return domain.FileStamp{}, zerr.With(zerr.Wrap(domain.ErrPathStatFailed, err.Error()), "path", file)
		}
		sum, err := h.ComputeFileHash(file)
		if err != nil {
			return domain.FileStamp{}, err
		}

		rel, err := filepath.Rel(path, file)
		if err != nil {
			rel = file
		}
		_, _ = digest.WriteString(filepath.ToSlash(rel))
		_, _ = digest.Write([]byte{0})
		if err := binary.Write(digest, binary.LittleEndian, sum); err != nil {
			return domain.FileStamp{}, zerr.Wrap(domain.ErrFileHashFailed, "failed to write hash to digest")
		}

		stamp.Size += fi.Size()
		stamp.ModTime = max(stamp.ModTime, fi.ModTime().UnixNano())
	}
	stamp.Hash = fmt.Sprintf("%016x", digest.Sum64())
	return stamp, nil
}
