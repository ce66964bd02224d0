package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/freqmodel"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/spectral"
)

func TestFindPeaksPlateauAndEdges(t *testing.T) {
	peaks := FindPeaks([]float64{0, 1, 3, 3, 3, 1, 0}, 0, 0)
	require.Len(t, peaks, 1)
	require.Equal(t, 3, peaks[0].Index)

	// The leading 5 is an edge sample and never a peak.
	peaks = FindPeaks([]float64{5, 1, 2, 1, 4, 0}, 0, 0)
	require.Equal(t, []Peak{
		{Index: 2, Height: 2, Prominence: 1},
		{Index: 4, Height: 4, Prominence: 3},
	}, peaks)

	peaks = FindPeaks([]float64{5, 1, 2, 1, 4, 0}, 3, 0)
	require.Len(t, peaks, 1)
	require.Equal(t, 4, peaks[0].Index)

	peaks = FindPeaks([]float64{5, 1, 2, 1, 4, 0}, 0, 1.5)
	require.Len(t, peaks, 1)
	require.Equal(t, 4, peaks[0].Index)
}

func TestFindPeaksTooShort(t *testing.T) {
	require.Empty(t, FindPeaks(nil, 0, 0))
	require.Empty(t, FindPeaks([]float64{1, 2}, 0, 0))
}

// grid is a 1 Hz spectrum from 0 to 10 Hz.
func grid(mags ...float64) domain.Spectrum {
	freqs := make([]float64, len(mags))
	for i := range freqs {
		freqs[i] = float64(i)
	}
	return domain.Spectrum{Frequencies: freqs, Magnitudes: mags}
}

func TestDetectSupplyPeakExclusion(t *testing.T) {
	spec := grid(0, 0, 0, 4, 0, 0, 10, 0, 0, 0, 0)

	d := New()
	got, err := d.Detect(spec, []float64{6, 3}, 6)
	require.NoError(t, err)
	require.Equal(t, []domain.DetectedDefect{
		{Frequency: 3, PeakFrequency: 3, Magnitude: 4, Severity: 0.4},
	}, got)

	d.ExcludeSupplyPeak = false
	got, err = d.Detect(spec, []float64{6, 3}, 6)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 6.0, got[0].PeakFrequency)
	require.Equal(t, 1.0, got[0].Severity)
}

func TestDetectSharedPeakAndClipping(t *testing.T) {
	// Reference bin (2 Hz) is weaker than the defect peak at 7 Hz.
	spec := grid(0, 0, 1, 0, 0, 0, 0, 8, 0, 0, 0)

	got, err := New().Detect(spec, []float64{6.5, 7.5, 9.5}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, c := range []float64{6.5, 7.5} {
		require.Equal(t, c, got[i].Frequency)
		require.Equal(t, 7.0, got[i].PeakFrequency)
		require.Equal(t, 1.0, got[i].Severity)
	}
}

func TestDetectToleranceIsStrict(t *testing.T) {
	spec := grid(0, 0, 0, 0, 0, 5, 0, 0, 0, 0, 0)
	got, err := New().Detect(spec, []float64{7}, 1)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDetectSeverityBounds(t *testing.T) {
	spec := grid(0, 3, 0, 9, 0, 1, 0, 20, 0, 2, 0)
	got, err := New().Detect(spec, []float64{1, 3, 5, 7, 9}, 1)
	require.NoError(t, err)
	for _, det := range got {
		if det.Severity < 0 || det.Severity > 1 {
			t.Fatalf("severity out of range: %+v", det)
		}
	}
}

func TestDetectInjectedBPFO(t *testing.T) {
	params := domain.MachineParameters{
		SupplyFrequency: 60, RPM: 1770, Slip: 0.0167, Poles: 4,
		Bearing: domain.BearingGeometry{Balls: 9, BallDiameter: 7.94e-3, CageDiameter: 39e-3},
	}
	model, err := freqmodel.Compute(params)
	require.NoError(t, err)
	bpfo := model.Characteristic.BPFO

	const fs = 25600.0
	x := make([]float64, 65536)
	for i := range x {
		ts := float64(i) / fs
		x[i] = 50*math.Sin(2*math.Pi*60*ts) + 10*math.Sin(2*math.Pi*bpfo*ts)
	}
	spec, err := spectral.Estimator{}.Spectrum(x, fs)
	require.NoError(t, err)

	got, err := New().Detect(spec, model.Candidates[domain.ModeBearing], params.SupplyFrequency)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	require.Equal(t, bpfo, got[0].Frequency)
	require.Less(t, math.Abs(got[0].PeakFrequency-bpfo), DefaultTolerance)
	require.Greater(t, got[0].Severity, 0.0)
	require.LessOrEqual(t, got[0].Severity, 1.0)
}

func TestDetectAllThresholdOverride(t *testing.T) {
	spec := grid(0, 0, 0, 4, 0, 0, 10, 0, 0, 0, 0)
	set := domain.DefectFrequencySet{
		domain.ModeBearing: {3},
		domain.ModeRotor:   {3},
	}
	got, err := New().DetectAll(spec, set, 6, map[domain.FailureMode]float64{domain.ModeRotor: 0.5})
	require.NoError(t, err)
	require.Len(t, got[domain.ModeBearing], 1)
	require.Empty(t, got[domain.ModeRotor])
	require.Empty(t, got[domain.ModeStator])
}

func TestDetectRejectsBadCalibration(t *testing.T) {
	d := New()
	d.Tolerance = 0
	if _, err := d.Detect(grid(0, 1, 0), []float64{1}, 1); err == nil {
		t.Fatalf("expected error for zero tolerance")
	}
}
