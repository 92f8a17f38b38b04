package domain

import (
	"regexp"
	"time"
)

var targetNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Settings are scheduling defaults carried by a plan file.
// Zero values mean "not set" so that command line flags can override them.
type Settings struct {
	Strategy       string
	Jobs           int
	Retries        int
	Backoff        string
	BackoffDelay   time.Duration
	Timeout        time.Duration
	Elapsed        time.Duration
	CPU            time.Duration
	KeepGoing      bool
	NoLockScopes   bool
	GarbageCollect bool
	Trigger        []string
	Workers        []string
}

// Plan is the loaded description of a build.
type Plan struct {
	Root     string
	Language string
	Targets  []Target
	Prework  []Binding
	Imports  []Binding
	Settings Settings
}

// ValidateName checks that a target or import name can be bound in a scope.
func ValidateName(name string) error {
	if !targetNamePattern.MatchString(name) {
		return Detail(ErrInvalidTargetName, "name", name)
	}
	return nil
}

// Import returns the import binding with the given name.
func (p *Plan) Import(name string) (Binding, bool) {
	for _, imp := range p.Imports {
		if imp.Name == name {
			return imp, true
		}
	}
	return Binding{}, false
}

// Graph builds and validates the dependency graph of the plan.
// Dependencies on imports are allowed and do not become graph edges.
func (p *Plan) Graph() (*Graph, error) {
	g := NewGraph()
	for _, imp := range p.Imports {
		g.AddImport(NewInternedString(imp.Name))
	}
	for i := range p.Targets {
		t := p.Targets[i]
		if err := ValidateName(t.Name.String()); err != nil {
			return nil, err
		}
		if t.Dynamic() && !t.DependsOn(t.MapOver) {
			return nil, Detail(ErrInvalidMapOver, "target", t.Name.String())
		}
		if err := g.AddTarget(&t); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
