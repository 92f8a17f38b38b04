package domain

import (
	"errors"

	"go.trai.ch/zerr"
)

// ErrorClass is the handling category of a build error.
type ErrorClass int

const (
	// ClassNone means there is no error.
	ClassNone ErrorClass = iota
	// ClassAdvisory is logged and the build proceeds.
	ClassAdvisory
	// ClassConfiguration aborts before scheduling.
	ClassConfiguration
	// ClassTarget is retried, then fails the build or the branch.
	ClassTarget
	// ClassInfrastructure aborts immediately and is never retried.
	ClassInfrastructure
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassAdvisory:
		return "advisory"
	case ClassConfiguration:
		return "configuration"
	case ClassTarget:
		return "target"
	case ClassInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

var (
	infrastructureErrors = []error{ErrCacheLocked, ErrStorage, ErrTransport}
	configurationErrors  = []error{
		ErrCacheIsWorkingDir, ErrMalformedContext, ErrUnknownStrategy, ErrUnknownTrigger,
		ErrUnknownBackoff, ErrCycleDetected, ErrMissingDependency, ErrConfigNotFound,
		ErrConfigParseFailed, ErrConfigReadFailed, ErrNoExternalBackend, ErrTargetNotFound,
		ErrInvalidMapOver, ErrInvalidTargetName, ErrTargetAlreadyExists, ErrEvaluatorNotFound,
	}
	advisoryErrors = []error{ErrRemoteUnreachable, ErrPathStatFailed}
)

// Classify maps an error onto the build error taxonomy.
// Infrastructure failures win over everything else since they must never be retried.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if isAny(err, infrastructureErrors) {
		return ClassInfrastructure
	}
	if isAny(err, configurationErrors) {
		return ClassConfiguration
	}
	if isAny(err, advisoryErrors) {
		return ClassAdvisory
	}
	return ClassTarget
}

// Retryable reports whether another attempt may fix err.
func Retryable(err error) bool {
	return Classify(err) == ClassTarget
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// Detail attaches metadata to a sentinel while keeping it matchable with errors.Is.
func Detail(sentinel error, key string, value any) error {
	return zerr.With(zerr.Wrap(sentinel, ""), key, value)
}
