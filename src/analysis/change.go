package analysis

import "math"

// -----------------------------------------------------------------------------

// ChangeRatio returns (current - previous) / previous, or 0 when previous is
// not positive.
func ChangeRatio(current, previous float64) float64 {
	if previous <= 0 {
		return 0.0
	}
	return (current - previous) / previous
}

// -----------------------------------------------------------------------------

// ChangePercent is ChangeRatio expressed in percent.
func ChangePercent(current, previous float64) float64 {
	return ChangeRatio(current, previous) * 100
}

// -----------------------------------------------------------------------------

// RelativeMove is the absolute size of a move as a fraction of previous.
func RelativeMove(current, previous float64) float64 {
	return math.Abs(ChangeRatio(current, previous))
}

// -----------------------------------------------------------------------------

// IsLargeMove reports whether the move exceeds threshold (0.5 = 50%).
func IsLargeMove(current, previous, threshold float64) bool {
	if previous <= 0 {
		return false
	}
	return RelativeMove(current, previous) > threshold
}
