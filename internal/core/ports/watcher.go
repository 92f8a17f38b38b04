package ports

import (
	"context"
	"iter"
)

// WatchOp is the kind of change behind a WatchEvent.
type WatchOp uint8

// Changes reported by a Watcher.
const (
	OpCreate WatchOp = iota
	OpWrite
	OpRemove
	OpRename
)

func (op WatchOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// WatchEvent is one change below the watched plan root.
type WatchEvent struct {
	Path      string // absolute
	Operation WatchOp
}

// Watcher reports changes to the files a plan may depend on.
// Changes inside the workspace directory are never reported.
//
//go:generate mockgen -source=watcher.go -destination=mocks/mock_watcher.go -package=mocks
type Watcher interface {
	// Start watches root and every directory below it, including ones created later.
	Start(ctx context.Context, root string) error
	// Stop ends the event stream. It is safe to call more than once.
	Stop() error
	// Events yields changes until the watcher stops.
	Events() iter.Seq[WatchEvent]
}
