package ports

import (
	"context"
	"io"

	"go.trai.ch/mallard/internal/core/domain"
)

// SessionRecorder captures what happened in a build.
//
//go:generate mockgen -source=session.go -destination=mocks/mock_session.go -package=mocks
type SessionRecorder interface {
	// Record persists the snapshot of a finished build.
	Record(ctx context.Context, session *domain.Session) error
	// Dump writes one "namespace key hash" line per cache entry of the given namespaces.
	// A nil writer is a no-op.
	Dump(ctx context.Context, w io.Writer, namespaces []domain.Namespace) error
}
