package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// IsPowerOf2 reports whether value is a non-zero power of two.
func IsPowerOf2[T constraints.Unsigned](value T) bool {
	return (value != 0) && ((value & (value - 1)) == 0)
}

// DivCeil divides rounding up, e.g. the number of 4x4 blocks covering a
// texture edge. d must not be zero.
func DivCeil[T constraints.Unsigned](n, d T) T {
	return (n + d - 1) / d
}
