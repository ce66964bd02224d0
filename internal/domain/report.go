package domain

import "time"

// Recommendation is the maintenance advice derived from the worst severity.
type Recommendation string

const (
	RecommendRoutine Recommendation = "routine"
	RecommendPlanned Recommendation = "planned"
	RecommendUrgent  Recommendation = "urgent"
)

// Advice is the operator-facing text for the recommendation.
func (r Recommendation) Advice() string {
	switch r {
	case RecommendUrgent:
		return "Urgent maintenance required. Critical defects detected that may cause motor failure; stop the equipment and repair it immediately."
	case RecommendPlanned:
		return "Schedule maintenance soon. Developing defects detected that may degrade motor operation; run a vibration survey to confirm the condition."
	default:
		return "Motor is in good condition. Continue scheduled maintenance and periodic condition monitoring."
	}
}

// PhaseRMS holds the RMS current of each phase.
type PhaseRMS struct {
	R float64 `json:"R"`
	S float64 `json:"S"`
	T float64 `json:"T"`
}

// Avg is the mean of the three phase RMS values.
func (p PhaseRMS) Avg() float64 { return (p.R + p.S + p.T) / 3 }

// ModeResult is the assessment of one failure mode together with the
// detections that produced it.
type ModeResult struct {
	ConditionAssessment
	Candidates []float64        `json:"candidates"`
	Detections []DetectedDefect `json:"detections"`
}

// DiagnosisReport is the immutable result of one diagnosis run.
type DiagnosisReport struct {
	MotorID         string                     `json:"motor_id,omitempty"`
	Seq             uint64                     `json:"seq,omitempty"`
	CapturedAt      time.Time                  `json:"captured_at,omitzero"`
	AnalyzerVersion string                     `json:"analyzer_version"`
	Parameters      MachineParameters          `json:"parameters"`
	SampleRate      float64                    `json:"sample_rate"`
	Samples         int                        `json:"samples"`
	Frequencies     CharacteristicFrequencies  `json:"characteristic_frequencies"`
	Modes           map[FailureMode]ModeResult `json:"modes"`
	PhaseRMS        PhaseRMS                   `json:"phase_rms"`
	PhaseAsymmetry  float64                    `json:"phase_asymmetry"`
	DQRatio         float64                    `json:"dq_ratio"`
	Recommendation  Recommendation             `json:"recommendation"`
}

// Assessment returns the verdict for one mode.
func (r *DiagnosisReport) Assessment(m FailureMode) ConditionAssessment {
	return r.Modes[m].ConditionAssessment
}

// MaxSeverity is the largest raw severity across all modes.
func (r *DiagnosisReport) MaxSeverity() float64 {
	max := 0.0
	for _, m := range FailureModes {
		if s := r.Modes[m].Severity; s > max {
			max = s
		}
	}
	return max
}

// Summary is the compact JSON projection exchanged with renderers, stores
// and message buses.
type Summary struct {
	MotorID               string         `json:"motor_id,omitempty"`
	BearingCondition      Condition      `json:"bearing_condition"`
	BearingSeverity       float64        `json:"bearing_severity"`
	RotorCondition        Condition      `json:"rotor_condition"`
	RotorSeverity         float64        `json:"rotor_severity"`
	StatorCondition       Condition      `json:"stator_condition"`
	StatorSeverity        float64        `json:"stator_severity"`
	EccentricityCondition Condition      `json:"eccentricity_condition"`
	EccentricitySeverity  float64        `json:"eccentricity_severity"`
	PhaseAsymmetry        float64        `json:"phase_asymmetry"`
	DQRatio               float64        `json:"dq_ratio"`
	Recommendation        Recommendation `json:"recommendation"`
}

// Summary projects the report onto the flat interchange shape.
func (r *DiagnosisReport) Summary() Summary {
	b, ro, st, ec := r.Assessment(ModeBearing), r.Assessment(ModeRotor), r.Assessment(ModeStator), r.Assessment(ModeEccentricity)
	return Summary{
		MotorID:               r.MotorID,
		BearingCondition:      b.Condition,
		BearingSeverity:       b.Severity,
		RotorCondition:        ro.Condition,
		RotorSeverity:         ro.Severity,
		StatorCondition:       st.Condition,
		StatorSeverity:        st.Severity,
		EccentricityCondition: ec.Condition,
		EccentricitySeverity:  ec.Severity,
		PhaseAsymmetry:        r.PhaseAsymmetry,
		DQRatio:               r.DQRatio,
		Recommendation:        r.Recommendation,
	}
}
