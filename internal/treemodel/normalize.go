package treemodel

import "math"

// ProbabilityTolerance is the maximum allowed deviation of a sibling
// cohort's probabilities from summing to exactly 1.0.
const ProbabilityTolerance = 1e-3

// Normalize scales probabilities to sum to 1.0. If every input is zero
// (or the slice is empty-sum), it assigns equal probability 1/k to each
// of the k entries (the equal-distribution law).
//
// Normalize is idempotent: calling it again on its own output leaves the
// values unchanged within 1e-6, since a set that already sums to 1 is
// divided by 1.
func Normalize(probs []float64) []float64 {
	if len(probs) == 0 {
		return nil
	}

	var sum float64
	for _, p := range probs {
		sum += p
	}

	out := make([]float64, len(probs))
	if sum == 0 {
		equal := 1.0 / float64(len(probs))
		for i := range out {
			out[i] = equal
		}
		return out
	}

	for i, p := range probs {
		out[i] = p / sum
	}
	return out
}

// SumsToOne reports whether probs sum to 1.0 within ProbabilityTolerance.
func SumsToOne(probs []float64) bool {
	var sum float64
	for _, p := range probs {
		sum += p
	}
	return math.Abs(sum-1.0) <= ProbabilityTolerance
}

// Renormalize applies Normalize once and, if the result still doesn't
// sum to 1 within tolerance, applies it a second time. Returns the
// result and whether it converged within tolerance; callers should
// treat non-convergence as a schema failure.
func Renormalize(probs []float64) ([]float64, bool) {
	out := Normalize(probs)
	if SumsToOne(out) {
		return out, true
	}
	out = Normalize(out)
	return out, SumsToOne(out)
}
