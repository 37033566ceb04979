package mathhelp

import "math"

func BetweenInc(f, p, q float64) bool {
	if p <= q {
		return p <= f && f <= q
	}
	return q <= f && f <= p
}

func Pow2(n uint) uint {
	return 1 << n
}

func Bool2int(b bool) int {
	if b {
		return 1
	}
	return 0
}

func EuclidianMod(d, m int) int {
	r := d % m
	if (r < 0 && m > 0) || (r > 0 && m < 0) {
		return r + m
	}
	return r
}

func Clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

// Wrap folds f into [lo, hi) using euclidean modulo arithmetic.
// With includeHi, hi itself is allowed through unwrapped.
func Wrap(f, lo, hi float64, includeHi bool) float64 {
	if includeHi && f == hi {
		return f
	}
	span := hi - lo
	return math.Mod(math.Mod(f-lo, span)+span, span) + lo
}

// SnapZoom snaps a fractional zoom to the nearest multiple of step.
// A zero step leaves the zoom untouched.
func SnapZoom(zoom, step float64) float64 {
	if step == 0 {
		return zoom
	}
	return math.Round(zoom/step) * step
}
