package diagnosis

import (
	"fmt"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
)

// FrameDiagnoser diagnoses WAL frames, picking each motor's parameters by id
// and falling back to the plant default.
type FrameDiagnoser struct {
	d        *Diagnoser
	fallback domain.MachineParameters
	machines map[string]domain.MachineParameters
}

// NewFrameDiagnoser validates every parameter set up front so a bad motor
// entry fails at startup rather than per frame.
func NewFrameDiagnoser(d *Diagnoser, fallback domain.MachineParameters, machines map[string]domain.MachineParameters) (*FrameDiagnoser, error) {
	if d == nil {
		return nil, fmt.Errorf("diagnoser is required")
	}
	if err := fallback.Validate(); err != nil {
		return nil, err
	}
	cp := make(map[string]domain.MachineParameters, len(machines))
	for id, p := range machines {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("motor %s: %w", id, err)
		}
		cp[id] = p
	}
	return &FrameDiagnoser{d: d, fallback: fallback, machines: cp}, nil
}

// Parameters returns the machine data used for motorID.
func (f *FrameDiagnoser) Parameters(motorID string) domain.MachineParameters {
	if p, ok := f.machines[motorID]; ok {
		return p
	}
	return f.fallback
}

// DiagnoseFrame diagnoses one frame and stamps the report with its identity.
func (f *FrameDiagnoser) DiagnoseFrame(fr *domain.Frame) (*domain.DiagnosisReport, error) {
	if fr == nil {
		return nil, domain.InputErrorf("diagnose frame", "nil frame")
	}
	r, err := f.d.Diagnose(f.Parameters(fr.MotorID), fr.Waveform)
	if err != nil {
		return nil, fmt.Errorf("motor %s seq %d: %w", fr.MotorID, fr.Seq, err)
	}
	r.MotorID = fr.MotorID
	r.Seq = fr.Seq
	r.CapturedAt = fr.CapturedAt
	return r, nil
}

// Version identifies the analyzer.
func (f *FrameDiagnoser) Version() string { return f.d.Version() }
