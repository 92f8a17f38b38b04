package domain

import "maps"

// Trigger decides whether a target is stale given its last persisted and its current fingerprint.
// Both fingerprints are non-nil: a missing fingerprint always means stale and never reaches a trigger.
type Trigger func(previous, current *Fingerprint) bool

// DefaultTriggerNames lists the components compared when a plan does not configure a trigger.
var DefaultTriggerNames = []string{"command", "depend", "file"}

// DefaultTrigger fires on a changed command, a changed dependency value or changed file contents.
var DefaultTrigger = AnyOf(TriggerCommand, TriggerDepend, TriggerFile)

// TriggerCommand fires when the command text changed.
func TriggerCommand(previous, current *Fingerprint) bool {
	return previous.Command != current.Command
}

// TriggerDepend fires when the value of any dependency changed or the dependency set changed.
func TriggerDepend(previous, current *Fingerprint) bool {
	return previous.MapOver != current.MapOver ||
		previous.Element != current.Element ||
		!maps.Equal(previous.Dependencies, current.Dependencies)
}

// TriggerFile fires when the content of a declared file changed or the file set changed.
func TriggerFile(previous, current *Fingerprint) bool {
	return !sameFiles(previous, current, func(a, b FileStamp) bool { return a.Hash == b.Hash })
}

// TriggerMtime fires when the modification time or size of a declared file changed.
func TriggerMtime(previous, current *Fingerprint) bool {
	return !sameFiles(previous, current, func(a, b FileStamp) bool {
		return a.ModTime == b.ModTime && a.Size == b.Size
	})
}

// TriggerAlways marks the target stale on every build.
func TriggerAlways(_, _ *Fingerprint) bool { return true }

// TriggerNever only rebuilds targets that were never built.
func TriggerNever(_, _ *Fingerprint) bool { return false }

// AnyOf combines triggers; the result fires when any of them fires.
func AnyOf(triggers ...Trigger) Trigger {
	return func(previous, current *Fingerprint) bool {
		for _, t := range triggers {
			if t(previous, current) {
				return true
			}
		}
		return false
	}
}

// ParseTrigger builds a trigger from component names.
// An empty list yields DefaultTrigger.
func ParseTrigger(names []string) (Trigger, error) {
	if len(names) == 0 {
		return DefaultTrigger, nil
	}
	triggers := make([]Trigger, 0, len(names))
	for _, name := range names {
		switch name {
		case "command":
			triggers = append(triggers, TriggerCommand)
		case "depend":
			triggers = append(triggers, TriggerDepend)
		case "file":
			triggers = append(triggers, TriggerFile)
		case "mtime":
			triggers = append(triggers, TriggerMtime)
		case "always":
			triggers = append(triggers, TriggerAlways)
		case "never":
			triggers = append(triggers, TriggerNever)
		default:
			return nil, Detail(ErrUnknownTrigger, "trigger", name)
		}
	}
	if len(triggers) == 1 {
		return triggers[0], nil
	}
	return AnyOf(triggers...), nil
}

func sameFiles(previous, current *Fingerprint, eq func(a, b FileStamp) bool) bool {
	if len(previous.Files) != len(current.Files) {
		return false
	}
	for path, cur := range current.Files {
		prev, ok := previous.Files[path]
		if !ok || !eq(prev, cur) {
			return false
		}
	}
	return true
}
