// Package park rotates three-phase currents into the rotor-aligned d-q frame.
package park

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
)

// DefaultSamples is the subsample size used for the d-q ratio.
const DefaultSamples = 50000

// minChunk keeps goroutine overhead below the per-sample work.
const minChunk = 4096

var sqrt3over2 = math.Sqrt(3) / 2

// Clarke maps one three-phase sample onto the stationary α-β axes.
func Clarke(r, s, t float64) (alpha, beta float64) {
	return r - 0.5*s - 0.5*t, sqrt3over2 * (s - t)
}

// Rotate projects α-β onto axes turned by theta.
func Rotate(alpha, beta, theta float64) (d, q float64) {
	sin, cos := math.Sincos(theta)
	return alpha*cos + beta*sin, -alpha*sin + beta*cos
}

// Inverse undoes Rotate.
func Inverse(d, q, theta float64) (alpha, beta float64) {
	sin, cos := math.Sincos(theta)
	return d*cos - q*sin, d*sin + q*cos
}

// Transformer runs the per-sample transform over index chunks in parallel.
// Every output element depends only on its own inputs, so results are
// identical for any Workers value.
type Transformer struct {
	Workers int
}

// Transform returns the d and q sequences for equal-length r, s, t and theta.
func (tr Transformer) Transform(r, s, t, theta []float64) (d, q []float64, err error) {
	n := len(r)
	if len(s) != n || len(t) != n || len(theta) != n {
		return nil, nil, domain.InputErrorf("park transform", "length mismatch: r=%d s=%d t=%d theta=%d", n, len(s), len(t), len(theta))
	}
	d = make([]float64, n)
	q = make([]float64, n)

	workers := tr.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := max(minChunk, (n+workers-1)/workers)

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				a, b := Clarke(r[i], s[i], t[i])
				d[i], q[i] = Rotate(a, b, theta[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return d, q, nil
}

// Indices picks n evenly spaced indices over [0, total-1], truncated toward
// zero. n == 0 selects every index.
func Indices(total, n int) ([]int, error) {
	const op = "park subsample"
	switch {
	case total <= 0:
		return nil, domain.InputErrorf(op, "no samples")
	case n < 0:
		return nil, domain.InputErrorf(op, "subsample size must be >= 0, got %d", n)
	case n > total:
		return nil, domain.InputErrorf(op, "subsample of %d exceeds %d available samples", n, total)
	case n == 0:
		n = total
	}
	idx := make([]int, n)
	if n == 1 {
		return idx, nil
	}
	step := float64(total-1) / float64(n-1)
	for i := range idx {
		idx[i] = int(float64(i) * step)
	}
	idx[n-1] = total - 1
	return idx, nil
}

// Analyze subsamples w, rotates it at the mechanical angle 2π·rotorHz·t and
// returns SD(d)/SD(q) using population standard deviations.
func (tr Transformer) Analyze(w domain.Waveform, rotorHz float64, n int) (float64, error) {
	idx, err := Indices(w.Len(), n)
	if err != nil {
		return 0, err
	}
	r := make([]float64, len(idx))
	s := make([]float64, len(idx))
	t := make([]float64, len(idx))
	theta := make([]float64, len(idx))
	for i, k := range idx {
		r[i], s[i], t[i] = w.R[k], w.S[k], w.T[k]
		theta[i] = 2 * math.Pi * rotorHz * float64(k) / w.SampleRate
	}
	d, q, err := tr.Transform(r, s, t, theta)
	if err != nil {
		return 0, err
	}
	return Ratio(d, q)
}

// Ratio is SD(d)/SD(q). A constant q axis has no defined ratio.
func Ratio(d, q []float64) (float64, error) {
	sq := stat.PopStdDev(q, nil)
	if sq == 0 || math.IsNaN(sq) {
		return 0, domain.ComputationErrorf("dq ratio", "q-axis has zero variance")
	}
	ratio := stat.PopStdDev(d, nil) / sq
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0, domain.ComputationErrorf("dq ratio", "non-finite ratio")
	}
	return ratio, nil
}
