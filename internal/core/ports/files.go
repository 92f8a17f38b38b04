package ports

import (
	"context"

	"go.trai.ch/mallard/internal/core/domain"
)

// FileInspector resolves declared file dependencies, locally or by URL.
//
//go:generate mockgen -source=files.go -destination=mocks/mock_files.go -package=mocks
type FileInspector interface {
	// IsRemote reports whether path is URL-shaped.
	IsRemote(path string) bool
	// Exists reports whether path resolves locally or remotely.
	Exists(ctx context.Context, path string) bool
	// Stamp returns the current state of path.
	Stamp(ctx context.Context, path string) (domain.FileStamp, error)
}
