package constants

// ClockMode selects how the simulated clock advances.
type ClockMode string

const (
	// ClockRounds advances the clock as a pure function of the round count.
	ClockRounds ClockMode = "rounds"

	// ClockWallTime advances the clock once a wall-clock quantum has elapsed.
	ClockWallTime ClockMode = "wallclock"
)

// Valid returns true if the mode is a recognized value.
func (m ClockMode) Valid() bool {
	switch m {
	case ClockRounds, ClockWallTime:
		return true
	}
	return false
}

// String returns the string representation of the mode.
func (m ClockMode) String() string {
	return string(m)
}

// BudgetPolicy decides what a non-positive simulated-time budget means.
type BudgetPolicy string

const (
	// BudgetZero runs no rounds at all when the budget is non-positive.
	BudgetZero BudgetPolicy = "zero"

	// BudgetForever runs until the run context is cancelled.
	BudgetForever BudgetPolicy = "forever"
)

// Valid returns true if the policy is a recognized value.
func (p BudgetPolicy) Valid() bool {
	switch p {
	case BudgetZero, BudgetForever:
		return true
	}
	return false
}

// String returns the string representation of the policy.
func (p BudgetPolicy) String() string {
	return string(p)
}
