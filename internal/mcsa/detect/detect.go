// Package detect matches spectral peaks against candidate defect frequencies.
package detect

import (
	"math"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
)

// Defaults for the detector knobs.
const (
	DefaultThreshold  = 0.01
	DefaultProminence = 0.1
	DefaultTolerance  = 2.0
	// minReference keeps the severity ratio finite when the supply bin is empty.
	minReference = 1e-6
)

// Detector scores candidate frequencies against a spectrum. Threshold and
// Prominence are fractions of the spectrum maximum; Tolerance is in Hz.
type Detector struct {
	Threshold  float64
	Prominence float64
	Tolerance  float64
	// ExcludeSupplyPeak stops the line-frequency peak from matching as a defect.
	ExcludeSupplyPeak bool
}

// New returns a detector with the default calibration.
func New() Detector {
	return Detector{
		Threshold:         DefaultThreshold,
		Prominence:        DefaultProminence,
		Tolerance:         DefaultTolerance,
		ExcludeSupplyPeak: true,
	}
}

// Validate rejects calibrations that cannot select anything sensible.
func (d Detector) Validate() error {
	const op = "detector"
	switch {
	case d.Threshold < 0 || math.IsNaN(d.Threshold):
		return domain.ConfigErrorf(op, "threshold must be >= 0, got %v", d.Threshold)
	case d.Prominence < 0 || math.IsNaN(d.Prominence):
		return domain.ConfigErrorf(op, "prominence must be >= 0, got %v", d.Prominence)
	case !(d.Tolerance > 0):
		return domain.ConfigErrorf(op, "tolerance must be > 0, got %v", d.Tolerance)
	}
	return nil
}

// Peaks finds the qualifying peaks of spec for this detector's threshold.
func (d Detector) Peaks(spec domain.Spectrum) []Peak {
	top := spec.Max()
	return FindPeaks(spec.Magnitudes, d.Threshold*top, d.Prominence*top)
}

// Detect walks candidates in order and, for each, takes the first peak
// within Tolerance. A peak may satisfy several candidates. Severity is the
// peak magnitude over the magnitude at the bin nearest supplyHz, clipped to 1.
func (d Detector) Detect(spec domain.Spectrum, candidates []float64, supplyHz float64) ([]domain.DetectedDefect, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return d.match(spec, d.Peaks(spec), candidates, supplyHz), nil
}

func (d Detector) match(spec domain.Spectrum, peaks []Peak, candidates []float64, supplyHz float64) []domain.DetectedDefect {
	ref := spec.NearestIndex(supplyHz)
	refMag := max(minReference, spec.Magnitudes[ref])

	var out []domain.DetectedDefect
	for _, c := range candidates {
		for _, p := range peaks {
			if d.ExcludeSupplyPeak && p.Index == ref {
				continue
			}
			pf := spec.Frequencies[p.Index]
			if math.Abs(pf-c) < d.Tolerance {
				out = append(out, domain.DetectedDefect{
					Frequency:     c,
					PeakFrequency: pf,
					Magnitude:     p.Height,
					Severity:      math.Min(1, p.Height/refMag),
				})
				break
			}
		}
	}
	return out
}

// DetectAll runs every mode's candidate set against one spectrum.
// thresholds overrides Threshold per mode when present.
func (d Detector) DetectAll(spec domain.Spectrum, set domain.DefectFrequencySet, supplyHz float64, thresholds map[domain.FailureMode]float64) (map[domain.FailureMode][]domain.DetectedDefect, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	out := make(map[domain.FailureMode][]domain.DetectedDefect, len(set))
	for _, mode := range domain.FailureModes {
		md := d
		if th, ok := thresholds[mode]; ok {
			md.Threshold = th
		}
		if err := md.Validate(); err != nil {
			return nil, err
		}
		out[mode] = md.match(spec, md.Peaks(spec), set[mode], supplyHz)
	}
	return out, nil
}
