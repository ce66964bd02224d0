package domain

// FailureMode is one of the four diagnosed motor failure families.
type FailureMode string

const (
	ModeBearing      FailureMode = "bearing"
	ModeRotor        FailureMode = "rotor"
	ModeStator       FailureMode = "stator"
	ModeEccentricity FailureMode = "eccentricity"
)

// FailureModes lists the modes in report order.
var FailureModes = [4]FailureMode{ModeBearing, ModeRotor, ModeStator, ModeEccentricity}

// DefectFrequencySet maps each failure mode to its ordered candidate
// frequencies in Hz.
type DefectFrequencySet map[FailureMode][]float64

// CharacteristicFrequencies are the named physical frequencies the candidate
// sets are built from.
type CharacteristicFrequencies struct {
	Rotor float64 `json:"rotor"`
	Cage  float64 `json:"cage"`
	BPFO  float64 `json:"bpfo"`
	BPFI  float64 `json:"bpfi"`
	BSF   float64 `json:"bsf"`
}

// DetectedDefect is a candidate frequency matched to a spectral peak.
type DetectedDefect struct {
	Frequency     float64 `json:"frequency"`
	PeakFrequency float64 `json:"peak_frequency"`
	Magnitude     float64 `json:"magnitude"`
	Severity      float64 `json:"severity"`
}
