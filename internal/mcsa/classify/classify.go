// Package classify turns per-mode detections into a severity score and a
// four-tier condition label.
package classify

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
)

// Tiers are the severity cut points separating Normal|Early, Early|Advanced
// and Advanced|Critical. Comparisons are strict: a severity equal to a cut
// point lands in the tier that starts there.
type Tiers struct {
	Early    float64 `yaml:"early" json:"early"`
	Advanced float64 `yaml:"advanced" json:"advanced"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Validate requires 0 <= Early <= Advanced <= Critical.
func (t Tiers) Validate() error {
	if !(t.Early >= 0 && t.Early <= t.Advanced && t.Advanced <= t.Critical) {
		return domain.ConfigErrorf("severity tiers", "cut points must be ascending and non-negative, got %+v", t)
	}
	return nil
}

// Label maps a severity to a condition.
func (t Tiers) Label(severity float64) domain.Condition {
	switch {
	case severity < t.Early:
		return domain.ConditionNormal
	case severity < t.Advanced:
		return domain.ConditionEarly
	case severity < t.Critical:
		return domain.ConditionAdvanced
	default:
		return domain.ConditionCritical
	}
}

// StatorLimits are the asymmetry percentages and combined-severity limits of
// the stator rule.
type StatorLimits struct {
	NormalAsymmetry   float64 `yaml:"normal_asymmetry" json:"normal_asymmetry"`
	EarlyAsymmetry    float64 `yaml:"early_asymmetry" json:"early_asymmetry"`
	AdvancedAsymmetry float64 `yaml:"advanced_asymmetry" json:"advanced_asymmetry"`
	EarlyCombined     float64 `yaml:"early_combined" json:"early_combined"`
	AdvancedCombined  float64 `yaml:"advanced_combined" json:"advanced_combined"`
}

// Classifier holds the calibration for every mode.
type Classifier struct {
	Bearing      Tiers        `yaml:"bearing" json:"bearing"`
	Rotor        Tiers        `yaml:"rotor" json:"rotor"`
	Eccentricity Tiers        `yaml:"eccentricity" json:"eccentricity"`
	Stator       StatorLimits `yaml:"stator" json:"stator"`
}

// Default returns the field-calibrated cut points.
func Default() Classifier {
	return Classifier{
		Bearing:      Tiers{Early: 0.1, Advanced: 0.3, Critical: 0.6},
		Rotor:        Tiers{Early: 0.05, Advanced: 0.2, Critical: 0.4},
		Eccentricity: Tiers{Early: 0.1, Advanced: 0.3, Critical: 0.6},
		Stator: StatorLimits{
			NormalAsymmetry:   5,
			EarlyAsymmetry:    10,
			AdvancedAsymmetry: 20,
			EarlyCombined:     0.2,
			AdvancedCombined:  0.4,
		},
	}
}

// Validate checks every tier set.
func (c Classifier) Validate() error {
	for _, t := range []Tiers{c.Bearing, c.Rotor, c.Eccentricity} {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	s := c.Stator
	if !(s.NormalAsymmetry >= 0 && s.NormalAsymmetry <= s.EarlyAsymmetry && s.EarlyAsymmetry <= s.AdvancedAsymmetry) ||
		!(s.EarlyCombined >= 0 && s.EarlyCombined <= s.AdvancedCombined) {
		return domain.ConfigErrorf("stator limits", "limits must be ascending and non-negative, got %+v", s)
	}
	return nil
}

// MeanSeverity averages detection severities; no detections scores 0.
func MeanSeverity(dets []domain.DetectedDefect) float64 {
	if len(dets) == 0 {
		return 0
	}
	sev := make([]float64, len(dets))
	for i, d := range dets {
		sev[i] = d.Severity
	}
	return stat.Mean(sev, nil)
}

// Assess classifies one non-stator mode from its detections.
func (c Classifier) Assess(mode domain.FailureMode, dets []domain.DetectedDefect) domain.ConditionAssessment {
	if len(dets) == 0 {
		return domain.ConditionAssessment{Condition: domain.ConditionNormal}
	}
	sev := MeanSeverity(dets)
	var t Tiers
	switch mode {
	case domain.ModeRotor:
		t = c.Rotor
	case domain.ModeEccentricity:
		t = c.Eccentricity
	default:
		t = c.Bearing
	}
	return domain.ConditionAssessment{Condition: t.Label(clip(sev)), Severity: sev}
}

// AssessStator folds the phase asymmetry fraction into the stator verdict.
// The reported severity is the larger of the asymmetry fraction and the mean
// detection severity.
func (c Classifier) AssessStator(dets []domain.DetectedDefect, asymmetry float64) domain.ConditionAssessment {
	l := c.Stator
	asymPct := math.Abs(asymmetry) * 100
	combined := math.Max(asymPct/100, MeanSeverity(dets))
	cls := clip(combined)

	var cond domain.Condition
	switch {
	case asymPct < l.NormalAsymmetry && len(dets) == 0:
		cond = domain.ConditionNormal
	case asymPct < l.EarlyAsymmetry && cls < l.EarlyCombined:
		cond = domain.ConditionEarly
	case asymPct < l.AdvancedAsymmetry || cls < l.AdvancedCombined:
		cond = domain.ConditionAdvanced
	default:
		cond = domain.ConditionCritical
	}
	return domain.ConditionAssessment{Condition: cond, Severity: combined}
}

func clip(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
