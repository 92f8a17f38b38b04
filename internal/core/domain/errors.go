package domain

import "go.trai.ch/zerr"

var (
	// ErrTargetAlreadyExists is returned when attempting to add a target with a name that already exists.
	ErrTargetAlreadyExists = zerr.New("target already exists")

	// ErrMissingDependency is returned when a target references a dependency that is neither a target nor an import.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when a cycle is detected in the target dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrTargetNotFound is returned when a requested target is not found in the graph.
	ErrTargetNotFound = zerr.New("target not found")

	// ErrInvalidTargetName is returned when a target name contains invalid characters.
	ErrInvalidTargetName = zerr.New("invalid target name")

	// ErrInvalidMapOver is returned when a dynamic target maps over something it does not depend on.
	ErrInvalidMapOver = zerr.New("dynamic target must map over one of its dependencies")

	// ErrMapOverNotList is returned when the value a dynamic target maps over is not a list.
	ErrMapOverNotList = zerr.New("mapped dependency value is not a list")

	// ErrUnknownTrigger is returned when a trigger name is not recognized.
	ErrUnknownTrigger = zerr.New("unknown trigger, expected one of command, depend, file, mtime, always, never")

	// ErrUnknownStrategy is returned when a scheduling strategy is not recognized.
	ErrUnknownStrategy = zerr.New("unknown strategy, expected one of sequential, pool, distributed, external")

	// ErrUnknownBackoff is returned when a backoff kind is not recognized.
	ErrUnknownBackoff = zerr.New("unknown backoff, expected one of constant, linear, exponential")

	// ErrMalformedContext is returned when a build context is assembled with inconsistent settings.
	ErrMalformedContext = zerr.New("malformed build context")

	// ErrCacheIsWorkingDir is returned when the cache directory is the working directory itself.
	ErrCacheIsWorkingDir = zerr.New("cache directory must not be the working directory")

	// ErrScopeLocked is returned when a new binding is inserted into a locked scope.
	ErrScopeLocked = zerr.New("cannot add bindings to a locked scope")

	// ErrCacheLocked is returned when the cache is held by another build.
	ErrCacheLocked = zerr.New("cache is locked by another build")

	// ErrCacheMiss is returned when a requested key is not found in the cache.
	ErrCacheMiss = zerr.New("cache miss")

	// ErrCorruptEntry is returned when a cache entry cannot be decoded.
	ErrCorruptEntry = zerr.New("corrupt cache entry")

	// ErrStorage is returned when the cache cannot be read from or written to.
	ErrStorage = zerr.New("cache storage failure")

	// ErrTransport is returned when a remote worker cannot be reached.
	ErrTransport = zerr.New("worker transport failure")

	// ErrEvaluatorNotFound is returned when a target asks for a language with no registered evaluator.
	ErrEvaluatorNotFound = zerr.New("no evaluator registered for language")

	// ErrEvaluationFailed is returned when a command fails to produce a value.
	ErrEvaluationFailed = zerr.New("command evaluation failed")

	// ErrResourceCapExceeded is returned when an attempt exceeds its elapsed or cpu cap.
	ErrResourceCapExceeded = zerr.New("resource cap exceeded")

	// ErrTargetFailed is returned when a target exhausted all of its attempts.
	ErrTargetFailed = zerr.New("target failed")

	// ErrBuildFailed is returned when the build did not complete every target.
	ErrBuildFailed = zerr.New("build failed")

	// ErrNoExternalBackend is returned when the external strategy is selected without a backend.
	ErrNoExternalBackend = zerr.New("external strategy selected but no backend supplied")

	// ErrPreworkFailed is returned when a prework binding fails to evaluate.
	ErrPreworkFailed = zerr.New("prework failed")

	// ErrImportFailed is returned when an import binding fails to evaluate.
	ErrImportFailed = zerr.New("import failed")

	// ErrConfigReadFailed is returned when the plan file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read plan file")

	// ErrConfigParseFailed is returned when the plan file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse plan file")

	// ErrConfigNotFound is returned when no plan file can be found.
	ErrConfigNotFound = zerr.New("could not find mallard.yaml or mallard.hcl")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrRemoteUnreachable is returned when a URL dependency cannot be resolved.
	ErrRemoteUnreachable = zerr.New("remote file unreachable")
)
