// Package constants provides named constants used throughout the neurosim codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

import "time"

// Signal constants
const (
	// NumSignalTypes is the number of distinct signal types. Every edge carries
	// one weighting per type and nerves keep per-type counters.
	NumSignalTypes = 10

	// MaxSignalMagnitude is the exclusive upper bound for a freshly generated nerve signal.
	MaxSignalMagnitude = 1000.0

	// MaxNerveFirings is the exclusive upper bound on signals a nerve emits per round.
	MaxNerveFirings = 20

	// Epsilon is the residual magnitude below which a signal is considered consumed.
	Epsilon = 0.001
)

// Inbox constants
const (
	// DefaultInboxCapacity is the number of pending signals a node can hold.
	// Further deliveries in the same round are counted as dropped.
	DefaultInboxCapacity = 200
)

// Neuron overload constants
const (
	// OverloadThreshold is the number of recently handled signals above which a
	// neuron starts halving and dropping signals.
	OverloadThreshold = 500

	// OverloadHalveOdds is the denominator of the halving probability (1 in 2).
	OverloadHalveOdds = 2

	// OverloadDropOdds is the denominator of the drop probability (1 in 3).
	OverloadDropOdds = 3
)

// NeuronSubtypeWeights is the multiplicative factor a neuron applies to every
// signal it handles, indexed by neuron subtype (sensory, motor, unipolar,
// pseudounipolar, bipolar, multipolar).
var NeuronSubtypeWeights = [6]float64{0.8, 1.2, 1.1, 2.6, 0.3, 1.8}

// Clock constants
const (
	// DefaultRoundsPerUnit is how many rounds make one simulated unit in rounds mode.
	DefaultRoundsPerUnit = 1

	// DefaultWallClockQuantum is the wall time per simulated unit in wallclock mode.
	DefaultWallClockQuantum = 2 * time.Second
)

// Report constants
const (
	// DefaultReportFilename is where the text report is written when no path is given.
	DefaultReportFilename = "summary_report"
)
