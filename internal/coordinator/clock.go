package coordinator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvandessel/neurosim/internal/constants"
)

// ClockConfig controls how simulated time advances and when a run ends.
type ClockConfig struct {
	// Mode selects round-driven or wall-clock-driven time. Default: rounds.
	Mode constants.ClockMode

	// RoundsPerUnit is the number of rounds per simulated unit in rounds mode. Default: 1.
	RoundsPerUnit int

	// Quantum is the wall time per simulated unit in wallclock mode. Default: 2s.
	Quantum time.Duration

	// Budget is the number of simulated units to run.
	Budget int

	// Policy decides what a Budget <= 0 means. Default: zero.
	Policy constants.BudgetPolicy
}

// DefaultClockConfig returns a rounds-mode clock with the given budget.
func DefaultClockConfig(budget int) ClockConfig {
	return ClockConfig{
		Mode:          constants.ClockRounds,
		RoundsPerUnit: constants.DefaultRoundsPerUnit,
		Quantum:       constants.DefaultWallClockQuantum,
		Budget:        budget,
		Policy:        constants.BudgetZero,
	}
}

// Validate checks the configuration for impossible values.
func (c ClockConfig) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid clock mode %q (must be %q or %q)", c.Mode, constants.ClockRounds, constants.ClockWallTime)
	}
	if !c.Policy.Valid() {
		return fmt.Errorf("invalid budget policy %q (must be %q or %q)", c.Policy, constants.BudgetZero, constants.BudgetForever)
	}
	if c.Mode == constants.ClockRounds && c.RoundsPerUnit < 1 {
		return fmt.Errorf("rounds per unit must be >= 1, got %d", c.RoundsPerUnit)
	}
	if c.Mode == constants.ClockWallTime && c.Quantum <= 0 {
		return fmt.Errorf("wall clock quantum must be positive, got %s", c.Quantum)
	}
	return nil
}

// ClockStats is the clock's view of a finished run.
type ClockStats struct {
	Units            int
	Rounds           int
	MinRoundsPerUnit int
	MaxRoundsPerUnit int
	Stopped          bool
}

// Clock is the simulated clock shared by every worker of a run.
//
// It only ever changes inside Tick, which the round barrier runs exactly once
// per round while every worker is blocked. Between barriers all workers
// therefore observe the same value.
type Clock struct {
	mu  sync.Mutex
	cfg ClockConfig
	now func() time.Time

	units        int
	rounds       int
	roundsInUnit int
	minRPU       int
	maxRPU       int
	lastAdvance  time.Time
	stopped      bool

	stopRequested atomic.Bool
}

// NewClock returns a clock at unit zero. now is the wall-clock source for
// wallclock mode; nil means time.Now.
func NewClock(cfg ClockConfig, now func() time.Time) *Clock {
	if cfg.RoundsPerUnit < 1 {
		cfg.RoundsPerUnit = constants.DefaultRoundsPerUnit
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = constants.DefaultWallClockQuantum
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{cfg: cfg, now: now, lastAdvance: now()}
}

// Config returns the clock configuration.
func (c *Clock) Config() ClockConfig { return c.cfg }

// Tick records one completed round and advances the clock if the round
// completes a unit. A pending stop request takes effect here, so every
// worker sees it at the same round boundary.
func (c *Clock) Tick(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rounds = round + 1
	c.roundsInUnit++

	var advance bool
	switch c.cfg.Mode {
	case constants.ClockWallTime:
		now := c.now()
		if now.Sub(c.lastAdvance) >= c.cfg.Quantum {
			advance = true
			c.lastAdvance = now
		}
	default:
		advance = c.roundsInUnit >= c.cfg.RoundsPerUnit
	}
	if advance {
		if c.units == 0 || c.roundsInUnit < c.minRPU {
			c.minRPU = c.roundsInUnit
		}
		if c.roundsInUnit > c.maxRPU {
			c.maxRPU = c.roundsInUnit
		}
		c.units++
		c.roundsInUnit = 0
	}

	if c.stopRequested.Load() {
		c.stopped = true
	}
}

// RequestStop asks the run to end at the next round boundary. It is safe to
// call from any goroutine, any number of times.
func (c *Clock) RequestStop() { c.stopRequested.Store(true) }

// Units returns the elapsed simulated units.
func (c *Clock) Units() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.units
}

// Done reports whether the run has reached its end: the budget is spent, a
// non-positive budget means zero rounds, or a stop request was honored.
func (c *Clock) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return true
	}
	if c.cfg.Budget <= 0 {
		return c.cfg.Policy != constants.BudgetForever
	}
	return c.units >= c.cfg.Budget
}

// Stats returns a snapshot of the clock counters.
func (c *Clock) Stats() ClockStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClockStats{
		Units:            c.units,
		Rounds:           c.rounds,
		MinRoundsPerUnit: c.minRPU,
		MaxRoundsPerUnit: c.maxRPU,
		Stopped:          c.stopped,
	}
}
