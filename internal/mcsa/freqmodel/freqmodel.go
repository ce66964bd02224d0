// Package freqmodel derives the characteristic defect frequencies of an
// induction motor from its nameplate and bearing data.
package freqmodel

import (
	"math"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
)

// Orders of the harmonic slip sidebands and eccentricity components.
const (
	RotorHarmonics = 3
	DynamicOrders  = 3
	MixedOrders    = 4
)

// Bearing computes the rolling-element frequencies for a shaft turning at
// rotorHz.
func Bearing(g domain.BearingGeometry, rotorHz float64) domain.CharacteristicFrequencies {
	ratio := g.BallDiameter / g.CageDiameter
	c := math.Cos(g.ContactAngle)
	n := float64(g.Balls)
	return domain.CharacteristicFrequencies{
		Rotor: rotorHz,
		Cage:  rotorHz * 0.5 * (1 - ratio*c),
		BPFO:  rotorHz * 0.5 * n * (1 - ratio*c),
		BPFI:  rotorHz * 0.5 * n * (1 + ratio*c),
		BSF:   rotorHz * 0.5 * (g.CageDiameter / g.BallDiameter) * (1 - ratio*ratio*c*c),
	}
}

// RotorSidebands returns the slip sidebands f(1 ± 2s) followed by the
// harmonic sidebands (1 ± 2ks)f for k = 1..RotorHarmonics.
func RotorSidebands(supply, slip float64) []float64 {
	out := []float64{supply - 2*slip*supply, supply + 2*slip*supply}
	for k := 1; k <= RotorHarmonics; k++ {
		ks := 2 * float64(k) * slip
		out = append(out, (1-ks)*supply, (1+ks)*supply)
	}
	return out
}

// Eccentricity returns the static, dynamic and mixed components in that order.
func Eccentricity(supply, rotorHz float64, poles int) []float64 {
	out := []float64{supply}
	for k := 1; k <= DynamicOrders; k++ {
		out = append(out, supply+float64(k)*rotorHz)
	}
	for k := 1; k <= MixedOrders; k++ {
		out = append(out, float64(k)*supply/float64(poles))
	}
	return out
}

// Stator returns the turn-fault harmonics, the asymmetry marker and the
// short-circuit markers.
func Stator(supply float64) []float64 {
	return []float64{2 * supply, 3 * supply, supply, supply, 3 * supply}
}

// Model is the full derivation for one parameter set.
type Model struct {
	Characteristic domain.CharacteristicFrequencies
	Candidates     domain.DefectFrequencySet
}

// Compute validates p and derives every candidate set. Candidate lists keep
// the order in which the detector scans them.
func Compute(p domain.MachineParameters) (Model, error) {
	if err := p.Validate(); err != nil {
		return Model{}, err
	}
	fr := p.RotorFrequency()
	ch := Bearing(p.Bearing, fr)
	return Model{
		Characteristic: ch,
		Candidates: domain.DefectFrequencySet{
			domain.ModeBearing: {
				ch.BPFO, ch.BPFI, ch.BSF, ch.Cage,
				2 * ch.BPFO, 2 * ch.BPFI, ch.BPFO + ch.BPFI,
			},
			domain.ModeRotor:        RotorSidebands(p.SupplyFrequency, p.Slip),
			domain.ModeEccentricity: Eccentricity(p.SupplyFrequency, fr, p.Poles),
			domain.ModeStator:       Stator(p.SupplyFrequency),
		},
	}, nil
}
