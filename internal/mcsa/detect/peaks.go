package detect

// Peak is a local maximum of a magnitude series.
type Peak struct {
	Index      int
	Height     float64
	Prominence float64
}

// localMaxima returns the indices of strict local maxima. A flat top counts
// once, at its midpoint (rounded down); the first and last samples never
// qualify.
func localMaxima(x []float64) []int {
	var out []int
	n := len(x)
	for i := 1; i < n-1; i++ {
		if !(x[i-1] < x[i]) {
			continue
		}
		ahead := i + 1
		for ahead < n-1 && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			out = append(out, (i+ahead-1)/2)
			i = ahead
		}
	}
	return out
}

// prominence measures how far a peak stands above the higher of the two
// lowest points reached before the series climbs above it on either side.
func prominence(x []float64, p int) float64 {
	leftMin := x[p]
	for i := p; i >= 0 && x[i] <= x[p]; i-- {
		if x[i] < leftMin {
			leftMin = x[i]
		}
	}
	rightMin := x[p]
	for i := p; i < len(x) && x[i] <= x[p]; i++ {
		if x[i] < rightMin {
			rightMin = x[i]
		}
	}
	return x[p] - max(leftMin, rightMin)
}

// FindPeaks returns the local maxima of x with height >= minHeight and
// prominence >= minProminence, in ascending index order.
func FindPeaks(x []float64, minHeight, minProminence float64) []Peak {
	var out []Peak
	for _, i := range localMaxima(x) {
		if x[i] < minHeight {
			continue
		}
		prom := prominence(x, i)
		if prom < minProminence {
			continue
		}
		out = append(out, Peak{Index: i, Height: x[i], Prominence: prom})
	}
	return out
}
