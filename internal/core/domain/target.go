package domain

// Target represents a named unit of work in the plan.
// It uses InternedString for fields that are frequently repeated to save memory.
type Target struct {
	Name    InternedString
	Command string
	// Language selects the evaluator. Empty means the plan default.
	Language     string
	Dependencies []InternedString
	// Files are declared external-file dependencies, local paths or URLs.
	Files []InternedString
	// Trigger overrides the plan trigger when set.
	Trigger Trigger
	// MapOver names the dependency whose list value is expanded into sub-targets.
	MapOver InternedString
	// Retries overrides the build retry count when set.
	Retries *int
}

// Dynamic reports whether the target expands into sub-targets at runtime.
func (t *Target) Dynamic() bool {
	return !t.MapOver.IsZero()
}

// DependsOn reports whether name is one of the target's declared dependencies.
func (t *Target) DependsOn(name InternedString) bool {
	for _, dep := range t.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}

// Binding is a named command evaluated outside the graph, used for prework and imports.
type Binding struct {
	Name     string
	Command  string
	Language string
}
