package domain

import "math"

// SmoothingWindow is the full width of the trailing mean, in days.
const SmoothingWindow = 7

// Smooth computes the adaptive trailing mean of interpolated daily deltas.
//
// The span starts at the first position holding a delta or directly preceding
// one (the first interpolated day, whose own delta is nil) and ends at the last
// delta. At position k inside the span the window covers min(k+1, 7) positions
// ending at k; the mean is taken over the known samples in the window and
// rounded to the nearest integer. Positions outside the span, or whose window
// holds no sample, are nil.
func Smooth(deltas []*float64) []*int64 {
	out := make([]*int64, len(deltas))

	start, end := -1, -1
	for i, d := range deltas {
		if d == nil {
			continue
		}
		if start < 0 {
			start = i
			if i > 0 {
				start = i - 1
			}
		}
		end = i
	}
	if start < 0 {
		return out
	}

	for i := start; i <= end; i++ {
		w := min(i-start+1, SmoothingWindow)
		var sum float64
		var n int
		for j := i - w + 1; j <= i; j++ {
			if deltas[j] != nil {
				sum += *deltas[j]
				n++
			}
		}
		if n == 0 {
			continue
		}
		out[i] = ptr(int64(math.Round(sum / float64(n))))
	}
	return out
}
