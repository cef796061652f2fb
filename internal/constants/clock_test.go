package constants

import "testing"

func TestClockMode_Valid(t *testing.T) {
	tests := []struct {
		name string
		mode ClockMode
		want bool
	}{
		{name: "rounds is valid", mode: ClockRounds, want: true},
		{name: "wallclock is valid", mode: ClockWallTime, want: true},
		{name: "empty string is invalid", mode: ClockMode(""), want: false},
		{name: "arbitrary string is invalid", mode: ClockMode("cycles"), want: false},
		{name: "ROUNDS uppercase is invalid", mode: ClockMode("ROUNDS"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mode.Valid(); got != tt.want {
				t.Errorf("ClockMode.Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBudgetPolicy_Valid(t *testing.T) {
	tests := []struct {
		name   string
		policy BudgetPolicy
		want   bool
	}{
		{name: "zero is valid", policy: BudgetZero, want: true},
		{name: "forever is valid", policy: BudgetForever, want: true},
		{name: "empty string is invalid", policy: BudgetPolicy(""), want: false},
		{name: "arbitrary string is invalid", policy: BudgetPolicy("never"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Valid(); got != tt.want {
				t.Errorf("BudgetPolicy.Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeuronSubtypeWeights(t *testing.T) {
	want := [6]float64{0.8, 1.2, 1.1, 2.6, 0.3, 1.8}
	if NeuronSubtypeWeights != want {
		t.Errorf("NeuronSubtypeWeights = %v, want %v", NeuronSubtypeWeights, want)
	}
}
