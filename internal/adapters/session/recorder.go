// Package session records build snapshots in the cache and exports cache contents as text.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/uuid"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
)

// LatestKey is the session namespace key of the most recent snapshot.
const LatestKey = "latest"

var _ ports.SessionRecorder = (*Recorder)(nil)

// Recorder implements ports.SessionRecorder on a cache.
type Recorder struct {
	cache ports.Cache
}

// NewRecorder creates a recorder writing to cache.
func NewRecorder(cache ports.Cache) *Recorder {
	return &Recorder{cache: cache}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Environment fills the host and toolchain fields of s.
func Environment(s *domain.Session) {
	if host, err := os.Hostname(); err == nil {
		s.Host = host
	}
	s.GoVersion = runtime.Version()
}

// Record stores s under its id and as the latest snapshot.
func (r *Recorder) Record(ctx context.Context, s *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = NewID()
	}
	for _, key := range []string{s.ID, LatestKey} {
		if _, err := r.cache.Set(key, s, domain.NamespaceSession); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to record session"), "session", s.ID)
		}
	}
	return nil
}

// Latest loads the most recent snapshot.
func (r *Recorder) Latest() (*domain.Session, error) {
	var s domain.Session
	if err := r.cache.Load(LatestKey, domain.NamespaceSession, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Dump writes one "namespace<TAB>key<TAB>hash" line per entry of namespaces.
func (r *Recorder) Dump(ctx context.Context, w io.Writer, namespaces []domain.Namespace) error {
	if w == nil {
		return nil
	}
	for _, ns := range namespaces {
		keys, err := r.cache.Keys(ns)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			hash, err := r.cache.Hash(key, ns)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", ns, key, hash); err != nil {
				return zerr.Wrap(err, "failed to write dump")
			}
		}
	}
	return nil
}
