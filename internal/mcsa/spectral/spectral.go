// Package spectral estimates channel RMS and a median-averaged amplitude
// spectrum (Welch's method) of stator current channels.
package spectral

import (
	"math"
	"math/cmplx"
	"runtime"
	"slices"

	"github.com/mjibson/go-dsp/fft"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
)

// DefaultWindow is the analysis segment length in samples.
const DefaultWindow = 8192

// RMS is the root mean square of x. An empty channel has RMS 0.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// Estimator computes amplitude spectra. The zero value uses DefaultWindow and
// GOMAXPROCS workers.
type Estimator struct {
	// Window is the segment length; segments overlap by half.
	Window int
	// Workers bounds the segments transformed concurrently. Results do not
	// depend on it.
	Workers int
}

func (e Estimator) window() int {
	if e.Window > 0 {
		return e.Window
	}
	return DefaultWindow
}

func (e Estimator) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Spectrum returns the one-sided amplitude spectrum of x sampled at fs.
// Each overlapping Hann segment is mean-detrended and transformed; the per-bin
// power is the median over segments corrected for the median bias, and the
// magnitude is its square root.
func (e Estimator) Spectrum(x []float64, fs float64) (domain.Spectrum, error) {
	const op = "spectral estimate"
	nper := e.window()
	if !(fs > 0) {
		return domain.Spectrum{}, domain.InputErrorf(op, "sample rate must be > 0, got %v", fs)
	}
	if len(x) < nper {
		return domain.Spectrum{}, domain.ComputationErrorf(op, "%d samples is fewer than the %d-sample window", len(x), nper)
	}

	step := nper / 2
	if step == 0 {
		step = 1
	}
	nseg := (len(x)-nper)/step + 1
	nbins := nper/2 + 1
	win := hann(nper)
	scale := 1 / math.Pow(floats.Sum(win), 2)

	// power[s] holds the one-sided periodogram of segment s.
	power := make([][]float64, nseg)
	var g errgroup.Group
	g.SetLimit(e.workers())
	for s := 0; s < nseg; s++ {
		g.Go(func() error {
			power[s] = periodogram(x[s*step:s*step+nper], win, scale, nbins)
			return nil
		})
	}
	_ = g.Wait()

	bias := medianBias(nseg)
	freqs := make([]float64, nbins)
	mags := make([]float64, nbins)
	col := make([]float64, nseg)
	for k := 0; k < nbins; k++ {
		for s := range power {
			col[s] = power[s][k]
		}
		freqs[k] = float64(k) * fs / float64(nper)
		mags[k] = math.Sqrt(median(col) / bias)
	}

	spec := domain.Spectrum{Frequencies: freqs, Magnitudes: mags}
	if err := spec.Validate(); err != nil {
		return domain.Spectrum{}, err
	}
	return spec, nil
}

func periodogram(seg, win []float64, scale float64, nbins int) []float64 {
	mean := stat.Mean(seg, nil)
	buf := make([]float64, len(seg))
	for i, v := range seg {
		buf[i] = (v - mean) * win[i]
	}
	X := fft.FFTReal(buf)
	nper := len(seg)
	out := make([]float64, nbins)
	for k := 0; k < nbins; k++ {
		a := cmplx.Abs(X[k])
		p := a * a * scale
		if k > 0 && !(nper%2 == 0 && k == nper/2) {
			p *= 2
		}
		out[k] = p
	}
	return out
}

// hann is the periodic Hann window used for spectral analysis.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// median sorts v in place.
func median(v []float64) float64 {
	slices.Sort(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return 0.5 * (v[n/2-1] + v[n/2])
}

// medianBias is the expected ratio of the median to the mean of n
// chi-squared (2 dof) periodogram values.
func medianBias(n int) float64 {
	b := 1.0
	for i := 1; i <= (n-1)/2; i++ {
		ii := 2 * float64(i)
		b += 1/(ii+1) - 1/ii
	}
	return b
}
