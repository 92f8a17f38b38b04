package domain

// Strategy is the closed set of scheduling strategies.
type Strategy int

const (
	// StrategySequential runs one target at a time in topological order.
	StrategySequential Strategy = iota
	// StrategyPool runs eligible targets on a bounded pool of local workers.
	StrategyPool
	// StrategyDistributed dispatches eligible targets to remote workers.
	StrategyDistributed
	// StrategyExternal hands the whole build to a caller supplied backend.
	StrategyExternal
)

func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "sequential"
	case StrategyPool:
		return "pool"
	case StrategyDistributed:
		return "distributed"
	case StrategyExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a strategy name into a Strategy.
// An empty name selects the sequential strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "sequential":
		return StrategySequential, nil
	case "pool":
		return StrategyPool, nil
	case "distributed":
		return StrategyDistributed, nil
	case "external":
		return StrategyExternal, nil
	default:
		return 0, Detail(ErrUnknownStrategy, "strategy", name)
	}
}
