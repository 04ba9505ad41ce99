package mathx

import "math"

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round rounds half toward positive infinity (-0.5 -> 0, 0.5 -> 1).
// Balance tables were tuned against this rule, not math.Round's half-away-from-zero.
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
