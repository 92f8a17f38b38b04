package domain

import (
	"maps"
	"slices"
	"sync"
)

// Tables tracks dynamic targets during a build: which sub-targets exist,
// how many each dynamic target produced and which sub-targets belong to it.
// They are rebuilt on every build and cleared at teardown.
type Tables struct {
	mu      sync.RWMutex
	exists  map[string]bool
	size    map[string]int
	members map[string][]string
}

// NewTables creates empty bookkeeping tables.
func NewTables() *Tables {
	return &Tables{
		exists:  make(map[string]bool),
		size:    make(map[string]int),
		members: make(map[string][]string),
	}
}

// Register records the sub-targets produced by a dynamic target.
func (t *Tables) Register(parent string, subs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.size[parent] = len(subs)
	t.members[parent] = slices.Clone(subs)
	for _, s := range subs {
		t.exists[s] = true
	}
}

// Exists reports whether a sub-target was produced in this build.
func (t *Tables) Exists(sub string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exists[sub]
}

// Size returns the number of sub-targets a dynamic target produced.
func (t *Tables) Size(parent string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size[parent]
}

// Members returns the sub-targets of a dynamic target in element order.
func (t *Tables) Members(parent string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.members[parent])
}

// Parents returns the dynamic targets that registered sub-targets.
func (t *Tables) Parents() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.members))
}

// Clear discards every entry.
func (t *Tables) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.exists)
	clear(t.size)
	clear(t.members)
}
