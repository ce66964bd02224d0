package domain

import "math"

// Spectrum is an amplitude spectrum: Frequencies strictly increasing (Hz),
// Magnitudes non-negative, both of equal length.
type Spectrum struct {
	Frequencies []float64 `json:"frequencies"`
	Magnitudes  []float64 `json:"magnitudes"`
}

// Len is the number of bins.
func (s Spectrum) Len() int { return len(s.Frequencies) }

// Max returns the largest magnitude, 0 for an empty spectrum.
func (s Spectrum) Max() float64 {
	max := 0.0
	for _, m := range s.Magnitudes {
		if m > max {
			max = m
		}
	}
	return max
}

// NearestIndex returns the bin whose frequency is closest to f. Ties resolve
// to the lower bin.
func (s Spectrum) NearestIndex(f float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, fi := range s.Frequencies {
		if d := math.Abs(fi - f); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Validate checks the structural invariants.
func (s Spectrum) Validate() error {
	const op = "spectrum"
	if len(s.Frequencies) == 0 {
		return InputErrorf(op, "empty spectrum")
	}
	if len(s.Frequencies) != len(s.Magnitudes) {
		return InputErrorf(op, "%d frequencies but %d magnitudes", len(s.Frequencies), len(s.Magnitudes))
	}
	for i, m := range s.Magnitudes {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return ComputationErrorf(op, "non-finite magnitude at bin %d", i)
		}
		if m < 0 {
			return ComputationErrorf(op, "negative magnitude at bin %d", i)
		}
		if i > 0 && !(s.Frequencies[i] > s.Frequencies[i-1]) {
			return InputErrorf(op, "frequencies not strictly increasing at bin %d", i)
		}
	}
	return nil
}
