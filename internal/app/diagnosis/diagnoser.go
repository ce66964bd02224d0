// Package diagnosis composes the MCSA stages into one report per waveform.
package diagnosis

import (
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/logging"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/freqmodel"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/park"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/spectral"
)

// Version tags every report with the analyzer calibration generation.
const Version = "mcsa-1"

// Diagnoser is safe for concurrent use; it holds only immutable options.
type Diagnoser struct {
	opts Options
	log  logr.Logger
}

// New validates opts. A zero logger discards output.
func New(opts Options, log logr.Logger) (*Diagnoser, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Diagnoser{opts: opts, log: log}, nil
}

// Options returns the calibration in use.
func (d *Diagnoser) Options() Options { return d.opts }

// Version identifies the analyzer that produced a report.
func (d *Diagnoser) Version() string { return Version }

// Diagnose runs the full analysis. The first failing stage aborts the run;
// no partial report is returned.
func (d *Diagnoser) Diagnose(p domain.MachineParameters, w domain.Waveform) (*domain.DiagnosisReport, error) {
	model, err := freqmodel.Compute(p)
	if err != nil {
		return nil, fmt.Errorf("frequency model: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	rms := domain.PhaseRMS{R: spectral.RMS(w.R), S: spectral.RMS(w.S), T: spectral.RMS(w.T)}
	asym, err := Asymmetry(rms)
	if err != nil {
		return nil, err
	}

	// The spectrum and the d-q ratio read the same waveform independently.
	var (
		spec             domain.Spectrum
		ratio            float64
		specErr, parkErr error
		g                errgroup.Group
	)
	g.Go(func() error {
		est := spectral.Estimator{Window: d.opts.Window, Workers: d.opts.Workers}
		spec, specErr = est.Spectrum(w.Channel(d.opts.SpectrumPhase), w.SampleRate)
		return nil
	})
	g.Go(func() error {
		tr := park.Transformer{Workers: d.opts.Workers}
		ratio, parkErr = tr.Analyze(w, p.RotorFrequency(), d.opts.ParkSamples)
		return nil
	})
	_ = g.Wait()
	if specErr != nil {
		return nil, fmt.Errorf("spectral estimate: %w", specErr)
	}
	d.log.V(logging.DEBUG).Info("spectrum ready", "bins", spec.Len(), "max", spec.Max())

	dets, err := d.opts.Detector.DetectAll(spec, model.Candidates, p.SupplyFrequency, d.opts.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("defect detection: %w", err)
	}
	if parkErr != nil {
		return nil, fmt.Errorf("park transform: %w", parkErr)
	}

	modes := make(map[domain.FailureMode]domain.ModeResult, len(domain.FailureModes))
	for _, mode := range domain.FailureModes {
		var a domain.ConditionAssessment
		if mode == domain.ModeStator {
			a = d.opts.Classifier.AssessStator(dets[mode], asym)
		} else {
			a = d.opts.Classifier.Assess(mode, dets[mode])
		}
		modes[mode] = domain.ModeResult{
			ConditionAssessment: a,
			Candidates:          append([]float64(nil), model.Candidates[mode]...),
			Detections:          dets[mode],
		}
		d.log.V(logging.DEBUG).Info("mode assessed", "mode", mode, "condition", a.Condition,
			"severity", a.Severity, "detections", len(dets[mode]))
	}

	report := &domain.DiagnosisReport{
		AnalyzerVersion: Version,
		Parameters:      p,
		SampleRate:      w.SampleRate,
		Samples:         w.Len(),
		Frequencies:     model.Characteristic,
		Modes:           modes,
		PhaseRMS:        rms,
		PhaseAsymmetry:  asym,
		DQRatio:         ratio,
	}
	report.Recommendation = d.opts.Recommend.Recommendation(report.MaxSeverity())
	return report, nil
}

// Asymmetry is the largest deviation of a phase RMS from the three-phase
// average, as a fraction of that average.
func Asymmetry(rms domain.PhaseRMS) (float64, error) {
	avg := rms.Avg()
	if !(avg > 0) {
		return 0, domain.ComputationErrorf("phase asymmetry", "average phase RMS is %v", avg)
	}
	dev := math.Max(math.Abs(rms.R-avg), math.Max(math.Abs(rms.S-avg), math.Abs(rms.T-avg)))
	return dev / avg, nil
}
