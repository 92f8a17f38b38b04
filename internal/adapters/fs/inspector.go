package fs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/mallard/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileInspector = (*Inspector)(nil)

const defaultRemoteTimeout = 10 * time.Second

// Inspector resolves file dependencies relative to a root directory.
// URL-shaped paths are checked with HTTP HEAD requests.
type Inspector struct {
	root   string
	hasher *Hasher
	client *http.Client
}

// InspectorOption configures an Inspector.
type InspectorOption func(*Inspector)

// WithHTTPClient replaces the client used for remote files.
func WithHTTPClient(c *http.Client) InspectorOption {
	return func(i *Inspector) {
		i.client = c
	}
}

// WithRoot sets the directory relative paths are resolved against.
func WithRoot(root string) InspectorOption {
	return func(i *Inspector) {
		i.root = root
	}
}

// NewInspector creates a new Inspector.
func NewInspector(hasher *Hasher, opts ...InspectorOption) *Inspector {
	i := &Inspector{
		hasher: hasher,
		client: &http.Client{Timeout: defaultRemoteTimeout},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IsRemote reports whether path is an http or https URL.
func (i *Inspector) IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Exists reports whether path can be resolved.
func (i *Inspector) Exists(ctx context.Context, path string) bool {
	if i.IsRemote(path) {
		resp, err := i.head(ctx, path)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode < http.StatusBadRequest
	}
	_, err := os.Stat(i.resolve(path))
	return err == nil
}

// Stamp returns the current state of path.
// Remote stamps are derived from the ETag and Last-Modified headers.
func (i *Inspector) Stamp(ctx context.Context, path string) (domain.FileStamp, error) {
	if !i.IsRemote(path) {
		return i.hasher.Stamp(i.resolve(path))
	}

	resp, err := i.head(ctx, path)
	if err != nil {
		return domain.FileStamp{}, zerr.With(zerr.Wrap(domain.ErrRemoteUnreachable, err.Error()), "url", path)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return domain.FileStamp{}, zerr.With(zerr.With(zerr.Wrap(domain.ErrRemoteUnreachable, resp.Status), "url", path), "status", resp.StatusCode)
	}

	stamp := domain.FileStamp{Size: resp.ContentLength}
	lastModified := resp.Header.Get("Last-Modified")
	if t, err := http.ParseTime(lastModified); err == nil {
		stamp.ModTime = t.UnixNano()
	}
	stamp.Hash = fmt.Sprintf("%016x", xxhash.Sum64String(resp.Header.Get("ETag")+"\x00"+lastModified))
	return stamp, nil
}

func (i *Inspector) head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	return i.client.Do(req)
}

func (i *Inspector) resolve(path string) string {
	if filepath.IsAbs(path) || i.root == "" {
		return path
	}
	return filepath.Join(i.root, path)
}
