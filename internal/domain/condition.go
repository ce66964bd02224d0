package domain

// Condition is the discrete health label of a failure mode.
type Condition string

const (
	ConditionNormal   Condition = "normal"
	ConditionEarly    Condition = "early"
	ConditionAdvanced Condition = "advanced"
	ConditionCritical Condition = "critical"
)

// Level orders conditions from healthiest (0) to worst (3); unknown labels are -1.
func (c Condition) Level() int {
	switch c {
	case ConditionNormal:
		return 0
	case ConditionEarly:
		return 1
	case ConditionAdvanced:
		return 2
	case ConditionCritical:
		return 3
	default:
		return -1
	}
}

// ConditionAssessment is the classifier verdict for one failure mode.
// Severity is reported raw; only classification clips it.
type ConditionAssessment struct {
	Condition Condition `json:"condition"`
	Severity  float64   `json:"severity"`
}
