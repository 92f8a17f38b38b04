package domain

import (
	"errors"
	"slices"
	"sync"

	"go.trai.ch/zerr"
)

// Status is the state of a target within a build.
type Status string

const (
	// StatusRunning means an attempt is in flight.
	StatusRunning Status = "running"
	// StatusDone means the value and fingerprint were committed.
	StatusDone Status = "done"
	// StatusFailed means every attempt failed.
	StatusFailed Status = "failed"
	// StatusSkipped means an upstream target failed.
	StatusSkipped Status = "skipped"
	// StatusCancelled means the build was aborted before the target started.
	StatusCancelled Status = "cancelled"
	// StatusUpToDate means the target was not outdated.
	StatusUpToDate Status = "up-to-date"
)

// Progress is the record persisted per target in the progress namespace.
type Progress struct {
	Status    Status `msgpack:"status"`
	Attempts  int    `msgpack:"attempts,omitempty"`
	Error     string `msgpack:"error,omitempty"`
	UpdatedAt int64  `msgpack:"updated_at"`
}

// Report partitions the targets of a build by outcome.
type Report struct {
	mu        sync.Mutex
	Succeeded []string
	Failed    []string
	Skipped   []string
	Cancelled []string
	UpToDate  []string
	causes    map[string]error
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{causes: make(map[string]error)}
}

// Record files a target under the given status.
func (r *Report) Record(name string, status Status, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch status {
	case StatusDone:
		r.Succeeded = append(r.Succeeded, name)
	case StatusFailed:
		r.Failed = append(r.Failed, name)
	case StatusSkipped:
		r.Skipped = append(r.Skipped, name)
	case StatusCancelled:
		r.Cancelled = append(r.Cancelled, name)
	case StatusUpToDate:
		r.UpToDate = append(r.UpToDate, name)
	case StatusRunning:
	}
	if cause != nil {
		r.causes[name] = cause
	}
}

// Status returns the outcome recorded for name, if any.
func (r *Report) Status(name string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for status, names := range map[Status][]string{
		StatusDone:      r.Succeeded,
		StatusFailed:    r.Failed,
		StatusSkipped:   r.Skipped,
		StatusCancelled: r.Cancelled,
		StatusUpToDate:  r.UpToDate,
	} {
		if slices.Contains(names, name) {
			return status, true
		}
	}
	return "", false
}

// Cause returns the error recorded for a failed target.
func (r *Report) Cause(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.causes[name]
}

// OK reports whether every scheduled target succeeded.
func (r *Report) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failed) == 0 && len(r.Skipped) == 0 && len(r.Cancelled) == 0
}

// Err summarizes failed targets as a single error, or nil when the build succeeded.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := make([]error, 0, len(r.Failed))
	for _, name := range r.Failed {
		errs = append(errs, zerr.With(zerr.Wrap(r.causes[name], ErrTargetFailed.Error()), "target", name))
	}
	summary := zerr.Wrap(ErrBuildFailed, "build did not complete")
	summary = zerr.With(summary, "failed", len(r.Failed))
	summary = zerr.With(summary, "skipped", len(r.Skipped))
	summary = zerr.With(summary, "cancelled", len(r.Cancelled))
	return errors.Join(append([]error{summary}, errs...)...)
}
