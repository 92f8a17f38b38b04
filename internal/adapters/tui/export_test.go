package tui

import "time"

// Message constructors exposed for testing.

func PlanMsg(targets []string, deps map[string][]string) any {
	return msgPlan{targets: targets, deps: deps}
}

func StartMsg(spanID, name string, start time.Time) any {
	return msgStart{spanID: spanID, name: name, start: start}
}

func LogMsg(spanID, data string) any {
	return msgLog{spanID: spanID, data: []byte(data)}
}

func CompleteMsg(spanID string, end time.Time, err error) any {
	return msgComplete{spanID: spanID, end: end, err: err}
}

// WithTerminal overrides the terminal probe of auto mode.
func (s *Selector) WithTerminal(isTerminal bool) *Selector {
	s.isTerminal = func() bool { return isTerminal }
	return s
}
