// Package confidence provides shared helpers for 0-1 confidence scores.
package confidence

// Common confidence levels used by the heuristic engines.
const (
	High = 0.85
	Low  = 0.40
	Min  = 0.20
	Max  = 0.95
)

// Aggregate combines component confidences into a single score using the
// arithmetic mean. An empty input yields zero.
func Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
