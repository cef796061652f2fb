package rng

import "fmt"

// Scripted replays fixed sequences of integers and floats. It panics when a
// sequence is exhausted or a scripted integer falls outside the requested
// range, so a test never silently runs on values it did not intend.
type Scripted struct {
	ints   []int
	floats []float64
}

// NewScripted returns a Source that yields ints for Intn and floats for Float64n, in order.
func NewScripted(ints []int, floats []float64) *Scripted {
	return &Scripted{ints: append([]int(nil), ints...), floats: append([]float64(nil), floats...)}
}

func (s *Scripted) Intn(n int) int {
	if len(s.ints) == 0 {
		panic(fmt.Sprintf("rng: scripted ints exhausted (Intn(%d))", n))
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v < 0 || v >= n {
		panic(fmt.Sprintf("rng: scripted int %d outside [0,%d)", v, n))
	}
	return v
}

func (s *Scripted) Float64n(max float64) float64 {
	if len(s.floats) == 0 {
		panic(fmt.Sprintf("rng: scripted floats exhausted (Float64n(%v))", max))
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

// Remaining returns how many ints and floats have not been consumed.
func (s *Scripted) Remaining() (ints, floats int) { return len(s.ints), len(s.floats) }

// Zero always returns 0. It makes every edge choice the first eligible edge
// and disables every overload branch; nerves never fire on their own.
type Zero struct{}

func (Zero) Intn(int) int             { return 0 }
func (Zero) Float64n(float64) float64 { return 0 }
