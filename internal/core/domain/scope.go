package domain

import (
	"maps"
	"slices"
	"sync"

	"go.trai.ch/zerr"
)

const (
	// ScopeTargets accumulates completed target values.
	ScopeTargets = "targets"
	// ScopeDynamic holds the sub-targets produced by dynamic targets.
	ScopeDynamic = "dynamic-subtargets"
	// ScopeImports holds memoized import values.
	ScopeImports = "loaded-imports"
)

// Scope is a mutable namespace of bindings that commands are evaluated against.
// While locked, new names cannot be introduced; existing bindings stay readable and writable.
// A new scope starts locked.
type Scope struct {
	name     string
	mu       sync.RWMutex
	bindings map[string]any
	locked   bool
}

// NewScope creates a locked, empty scope.
func NewScope(name string) *Scope {
	return &Scope{
		name:     name,
		bindings: make(map[string]any),
		locked:   true,
	}
}

// Name returns the scope name.
func (s *Scope) Name() string {
	return s.name
}

// Set binds name to v. Introducing a new name fails with ErrScopeLocked while the scope is locked.
func (s *Scope) Set(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bindings[name]; !exists && s.locked {
		return zerr.With(Detail(ErrScopeLocked, "scope", s.name), "binding", name)
	}
	s.bindings[name] = v
	return nil
}

// Commit binds a completed value. It is the engine's insertion path and ignores the lock.
func (s *Scope) Commit(name string, v any) {
	s.mu.Lock()
	s.bindings[name] = v
	s.mu.Unlock()
}

// Delete removes a binding if present.
func (s *Scope) Delete(name string) {
	s.mu.Lock()
	delete(s.bindings, name)
	s.mu.Unlock()
}

// Get returns the value bound to name.
func (s *Scope) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.bindings[name]
	return v, ok
}

// Has reports whether name is bound.
func (s *Scope) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Lock blocks the introduction of new bindings. It is idempotent.
func (s *Scope) Lock() {
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
}

// Unlock permits new bindings again. It is idempotent.
func (s *Scope) Unlock() {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
}

// Locked reports the state of the lock bit.
func (s *Scope) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked
}

// Names returns the bound names in sorted order.
func (s *Scope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.bindings))
}

// Snapshot returns a copy of the bindings.
func (s *Scope) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.bindings)
}

// Len returns the number of bindings.
func (s *Scope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}

// Clear removes every binding and locks the scope again.
func (s *Scope) Clear() {
	s.mu.Lock()
	clear(s.bindings)
	s.locked = true
	s.mu.Unlock()
}
