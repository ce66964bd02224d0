package domain

import "math"

// BearingGeometry describes the rolling-element bearing on the drive end.
// Diameters are in metres, the contact angle in radians.
type BearingGeometry struct {
	Model        string  `json:"model,omitempty" yaml:"model"`
	Balls        int     `json:"balls" yaml:"balls"`
	BallDiameter float64 `json:"ball_diameter" yaml:"ball_diameter"`
	CageDiameter float64 `json:"cage_diameter" yaml:"cage_diameter"`
	ContactAngle float64 `json:"contact_angle" yaml:"contact_angle"`
}

// MachineParameters is the nameplate and bearing data for one diagnosis run.
type MachineParameters struct {
	SupplyFrequency float64         `json:"supply_frequency" yaml:"supply_frequency"`
	RPM             float64         `json:"rpm" yaml:"rpm"`
	Slip            float64         `json:"slip" yaml:"slip"`
	Poles           int             `json:"poles" yaml:"poles"`
	Bearing         BearingGeometry `json:"bearing" yaml:"bearing"`
}

// RotorFrequency is the mechanical rotation frequency in Hz.
func (p MachineParameters) RotorFrequency() float64 {
	return p.RPM / 60
}

// Validate rejects parameters that make the frequency model meaningless.
func (p MachineParameters) Validate() error {
	const op = "machine parameters"
	switch {
	case !positive(p.SupplyFrequency):
		return ConfigErrorf(op, "supply frequency must be > 0, got %v", p.SupplyFrequency)
	case !positive(p.RPM):
		return ConfigErrorf(op, "rpm must be > 0, got %v", p.RPM)
	case !(p.Slip > 0 && p.Slip < 1):
		return ConfigErrorf(op, "slip must be in (0,1), got %v", p.Slip)
	case p.Poles <= 0:
		return ConfigErrorf(op, "pole count must be > 0, got %d", p.Poles)
	}
	return p.Bearing.Validate()
}

// Validate checks the bearing geometry.
func (g BearingGeometry) Validate() error {
	const op = "bearing geometry"
	switch {
	case g.Balls <= 0:
		return ConfigErrorf(op, "ball count must be > 0, got %d", g.Balls)
	case !positive(g.BallDiameter):
		return ConfigErrorf(op, "ball diameter must be > 0, got %v", g.BallDiameter)
	case !positive(g.CageDiameter):
		return ConfigErrorf(op, "cage diameter must be > 0, got %v", g.CageDiameter)
	case g.BallDiameter >= g.CageDiameter:
		return ConfigErrorf(op, "ball diameter %v must be smaller than cage diameter %v", g.BallDiameter, g.CageDiameter)
	case math.IsNaN(g.ContactAngle) || g.ContactAngle < 0 || g.ContactAngle >= math.Pi/2:
		return ConfigErrorf(op, "contact angle must be in [0, pi/2), got %v", g.ContactAngle)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
