package rng

// Sequence replays fixed draws. Float64 cycles through Floats, IntN through
// Ints (reduced modulo n). Empty lists yield 0. Used by tests to pin outcomes.
type Sequence struct {
	Floats []float64
	Ints   []int

	fi int
	ii int
}

func (s *Sequence) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[s.fi%len(s.Floats)]
	s.fi++
	return v
}

func (s *Sequence) IntN(n int) int {
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[s.ii%len(s.Ints)]
	s.ii++
	if v < 0 {
		v = -v
	}
	return v % n
}
