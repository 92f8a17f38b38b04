package tui

import "time"

// Messages the renderer feeds into the program.
type (
	msgPlan struct {
		targets []string
		deps    map[string][]string
	}

	msgStart struct {
		spanID string
		name   string
		start  time.Time
	}

	msgLog struct {
		spanID string
		data   []byte
	}

	msgComplete struct {
		spanID string
		end    time.Time
		err    error
	}
)
