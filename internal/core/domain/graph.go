// Package domain contains the core domain models and business logic for the target dependency graph.
package domain

import (
	"iter"
	"slices"

	"go.trai.ch/zerr"
)

// Graph represents a dependency graph of targets.
// Edges point from a target to the targets it depends on.
type Graph struct {
	targets        map[InternedString]Target
	imports        map[InternedString]bool
	dependents     map[InternedString][]InternedString
	executionOrder []InternedString
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		targets:    make(map[InternedString]Target),
		imports:    make(map[InternedString]bool),
		dependents: make(map[InternedString][]InternedString),
	}
}

// AddTarget adds a target to the graph.
// It returns an error if a target with the same name already exists.
func (g *Graph) AddTarget(t *Target) error {
	if _, exists := g.targets[t.Name]; exists {
		return Detail(ErrTargetAlreadyExists, "target_name", t.Name.String())
	}
	g.targets[t.Name] = *t
	return nil
}

// AddImport declares a name that targets may depend on without it being a graph node.
func (g *Graph) AddImport(name InternedString) {
	g.imports[name] = true
}

// Validate checks for cycles and unknown dependencies using a topological sort.
// It populates the execution order, visiting names in sorted order so that walks are deterministic.
func (g *Graph) Validate() error {
	g.executionOrder = make([]InternedString, 0, len(g.targets))
	visited := make(map[InternedString]int) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		target, exists := g.targets[u]
		if !exists {
			return Detail(ErrMissingDependency, "dependency", u.String())
		}

		for _, dep := range target.Dependencies {
			if g.imports[dep] {
				continue
			}
			if _, ok := g.targets[dep]; !ok {
				return zerr.With(Detail(ErrMissingDependency, "dependency", dep.String()), "target", u.String())
			}
			if visited[dep] == 1 {
				return g.buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	for _, name := range g.sortedNames() {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	g.index()
	return nil
}

func (g *Graph) sortedNames() []InternedString {
	names := make([]InternedString, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b InternedString) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		default:
			return 0
		}
	})
	return names
}

// index rebuilds the reverse edges for the targets present in the graph.
func (g *Graph) index() {
	g.dependents = make(map[InternedString][]InternedString, len(g.targets))
	for _, name := range g.executionOrder {
		for _, dep := range g.targets[name].Dependencies {
			if _, ok := g.targets[dep]; ok {
				g.dependents[dep] = append(g.dependents[dep], name)
			}
		}
	}
}

// buildCycleError constructs an error with cycle path metadata.
func (g *Graph) buildCycleError(path []InternedString, dep InternedString) error {
	cyclePath := ""
	startIdx := -1
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}
	for i := startIdx; i < len(path); i++ {
		cyclePath += path[i].String() + " -> "
	}
	cyclePath += dep.String()
	return Detail(ErrCycleDetected, "cycle", cyclePath)
}

// Walk returns an iterator that yields targets in execution order.
// It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[Target] {
	return func(yield func(Target) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.targets[name]) {
				return
			}
		}
	}
}

// GetTarget returns the target with the given name.
func (g *Graph) GetTarget(name InternedString) (Target, bool) {
	t, ok := g.targets[name]
	return t, ok
}

// Has reports whether the graph contains the named target.
func (g *Graph) Has(name InternedString) bool {
	_, ok := g.targets[name]
	return ok
}

// IsImport reports whether name is a declared import.
func (g *Graph) IsImport(name InternedString) bool {
	return g.imports[name]
}

// TargetCount returns the number of targets in the graph.
func (g *Graph) TargetCount() int {
	return len(g.targets)
}

// Empty reports whether the graph has no targets.
func (g *Graph) Empty() bool {
	return len(g.targets) == 0
}

// Names returns the target names in execution order.
func (g *Graph) Names() []string {
	return Strings(g.executionOrder)
}

// Dependents returns the targets in the graph that directly depend on name.
func (g *Graph) Dependents(name InternedString) []InternedString {
	return g.dependents[name]
}

// Upstream returns the dependencies of the named target that are targets of this graph.
func (g *Graph) Upstream(name InternedString) []InternedString {
	var res []InternedString
	for _, dep := range g.targets[name].Dependencies {
		if _, ok := g.targets[dep]; ok {
			res = append(res, dep)
		}
	}
	return res
}

// Downstream returns every target that depends on name directly or transitively.
func (g *Graph) Downstream(name InternedString) []InternedString {
	seen := make(map[InternedString]bool)
	var res []InternedString
	queue := []InternedString{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.dependents[cur] {
			if !seen[d] {
				seen[d] = true
				res = append(res, d)
				queue = append(queue, d)
			}
		}
	}
	return res
}

// Induce returns the subgraph containing exactly the given targets and the edges between them.
// Dependencies that fall outside the subgraph are kept on the targets but are treated as satisfied.
func (g *Graph) Induce(keep map[InternedString]bool) *Graph {
	sub := NewGraph()
	for name := range g.imports {
		sub.imports[name] = true
	}
	for _, name := range g.executionOrder {
		if keep[name] {
			sub.targets[name] = g.targets[name]
			sub.executionOrder = append(sub.executionOrder, name)
		}
	}
	sub.index()
	return sub
}

// Filter returns the subgraph needed to build the named targets: the targets and all their ancestors.
// An empty filter returns the graph itself.
func (g *Graph) Filter(names []string) (*Graph, error) {
	if len(names) == 0 {
		return g, nil
	}
	keep := make(map[InternedString]bool)
	var mark func(InternedString)
	mark = func(n InternedString) {
		if keep[n] {
			return
		}
		keep[n] = true
		for _, dep := range g.targets[n].Dependencies {
			if _, ok := g.targets[dep]; ok {
				mark(dep)
			}
		}
	}
	for _, raw := range names {
		name := NewInternedString(raw)
		if _, ok := g.targets[name]; !ok {
			return nil, Detail(ErrTargetNotFound, "target", raw)
		}
		mark(name)
	}
	return g.Induce(keep), nil
}
