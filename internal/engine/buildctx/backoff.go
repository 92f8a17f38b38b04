package buildctx

import (
	"math"
	"time"

	"go.trai.ch/mallard/internal/core/domain"
)

// Backoff returns the delay before retry number attempt, counted from 1.
type Backoff func(attempt int) time.Duration

const (
	defaultBackoffDelay = 100 * time.Millisecond
	maxBackoffDelay     = 30 * time.Second
)

// ParseBackoff resolves a backoff kind. An empty kind means exponential.
// A zero base delay uses the default of 100ms.
func ParseBackoff(kind string, base time.Duration) (Backoff, error) {
	if base <= 0 {
		base = defaultBackoffDelay
	}
	switch kind {
	case "constant":
		return ConstantBackoff(base), nil
	case "linear":
		return LinearBackoff(base), nil
	case "", "exponential":
		return ExponentialBackoff(base, maxBackoffDelay), nil
	case "none":
		return ConstantBackoff(0), nil
	default:
		return nil, domain.Detail(domain.ErrUnknownBackoff, "backoff", kind)
	}
}

// ConstantBackoff waits the same delay before every retry.
func ConstantBackoff(delay time.Duration) Backoff {
	return func(int) time.Duration {
		return delay
	}
}

// LinearBackoff waits attempt times base.
func LinearBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(max(attempt, 1))
	}
}

// ExponentialBackoff doubles the delay on every retry, capped at limit.
func ExponentialBackoff(base, limit time.Duration) Backoff {
	return func(attempt int) time.Duration {
		delay := float64(base) * math.Pow(2, float64(max(attempt, 1)-1))
		if delay > float64(limit) {
			return limit
		}
		return time.Duration(delay)
	}
}
