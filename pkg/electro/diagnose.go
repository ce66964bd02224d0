package electro

import (
	"go.uber.org/zap"

	"github.com/giicoo/Dorsia-Electro/internal/app/diagnosis"
	"github.com/giicoo/Dorsia-Electro/internal/logging"
)

// AnalysisOptions is the diagnosis calibration: spectral window, park
// subsample, detection tolerance, thresholds and condition tiers.
type AnalysisOptions = diagnosis.Options

// DefaultAnalysisOptions returns the field calibration.
func DefaultAnalysisOptions() AnalysisOptions {
	return diagnosis.DefaultOptions()
}

// Diagnose runs one diagnosis with the default calibration.
func Diagnose(p MachineParameters, w Waveform) (*Report, error) {
	d, err := diagnosis.New(diagnosis.DefaultOptions(), logging.Logr(nil))
	if err != nil {
		return nil, err
	}
	return d.Diagnose(p, w)
}

// NewDiagnoser builds the frame diagnoser described by cfg: its analysis
// calibration, default machine and per-motor overrides. A nil logger
// discards diagnostics.
func NewDiagnoser(cfg *Config, logger *zap.Logger) (Diagnoser, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	d, err := diagnosis.New(cfg.Options(), logging.Logr(logger))
	if err != nil {
		return nil, err
	}
	fd, err := diagnosis.NewFrameDiagnoser(d, cfg.Machine, cfg.Motors)
	if err != nil {
		return nil, err
	}
	return fd, nil
}
