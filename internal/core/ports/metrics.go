package ports

import "time"

// Metrics records build statistics.
//
//go:generate mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	// ObserveTarget records the outcome and duration of one target.
	ObserveTarget(status string, d time.Duration)
	// ObserveAttempt records one attempt, failed or not.
	ObserveAttempt(failed bool)
	// SetOutdated records the size of the outdated set.
	SetOutdated(n int)
	// Write exports the collected metrics to path. An empty path is a no-op.
	Write(path string) error
}
