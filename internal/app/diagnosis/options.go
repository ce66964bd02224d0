package diagnosis

import (
	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/classify"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/detect"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/park"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/spectral"
)

// Recommendation cut points on the largest mode severity.
type RecommendationLimits struct {
	Planned float64
	Urgent  float64
}

// Options is the immutable calibration of a Diagnoser.
type Options struct {
	// Window is the spectral segment length in samples.
	Window int
	// ParkSamples is the d-q subsample size; 0 uses the whole waveform.
	ParkSamples int
	// Workers bounds the goroutines of the parallel kernels; 0 means GOMAXPROCS.
	Workers int
	// SpectrumPhase is the channel whose spectrum is searched for defects.
	SpectrumPhase domain.Phase

	Detector   detect.Detector
	Thresholds map[domain.FailureMode]float64
	Classifier classify.Classifier
	Recommend  RecommendationLimits
}

// DefaultOptions returns the field calibration.
func DefaultOptions() Options {
	return Options{
		Window:        spectral.DefaultWindow,
		ParkSamples:   park.DefaultSamples,
		SpectrumPhase: domain.PhaseR,
		Detector:      detect.New(),
		Thresholds: map[domain.FailureMode]float64{
			domain.ModeBearing:      detect.DefaultThreshold,
			domain.ModeRotor:        detect.DefaultThreshold,
			domain.ModeStator:       detect.DefaultThreshold,
			domain.ModeEccentricity: detect.DefaultThreshold,
		},
		Classifier: classify.Default(),
		Recommend:  RecommendationLimits{Planned: 0.1, Urgent: 0.3},
	}
}

// Validate reports the first invalid knob as a config error.
func (o Options) Validate() error {
	const op = "diagnosis options"
	switch {
	case o.Window < 2:
		return domain.ConfigErrorf(op, "window must be >= 2, got %d", o.Window)
	case o.ParkSamples < 0:
		return domain.ConfigErrorf(op, "park samples must be >= 0, got %d", o.ParkSamples)
	case o.Workers < 0:
		return domain.ConfigErrorf(op, "workers must be >= 0, got %d", o.Workers)
	case !o.SpectrumPhase.Valid():
		return domain.ConfigErrorf(op, "unknown spectrum phase %q", o.SpectrumPhase)
	case !(o.Recommend.Planned >= 0 && o.Recommend.Planned <= o.Recommend.Urgent):
		return domain.ConfigErrorf(op, "recommendation limits must be ascending, got %+v", o.Recommend)
	}
	if err := o.Detector.Validate(); err != nil {
		return err
	}
	for mode, th := range o.Thresholds {
		if th < 0 {
			return domain.ConfigErrorf(op, "%s threshold must be >= 0, got %v", mode, th)
		}
	}
	return o.Classifier.Validate()
}

// Recommendation grades the worst severity.
func (l RecommendationLimits) Recommendation(maxSeverity float64) domain.Recommendation {
	switch {
	case maxSeverity > l.Urgent:
		return domain.RecommendUrgent
	case maxSeverity > l.Planned:
		return domain.RecommendPlanned
	default:
		return domain.RecommendRoutine
	}
}
