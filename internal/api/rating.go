package api

import "math"

// ValidRating clamps r to [1, 5] and rounds it to the nearest half star,
// the only ratings the service accepts.
func ValidRating(r float64) float64 {
	if math.IsNaN(r) {
		return 1
	}
	clamped := math.Min(5, math.Max(1, r))
	return math.Round(clamped*2) / 2
}
