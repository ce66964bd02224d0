package pipeline

import (
	"fmt"
	"time"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
)

// Assembler groups per-phase samples into fixed-size frames per motor. It is
// owned by a single goroutine.
type Assembler struct {
	frameSize  int
	sampleRate float64
	motors     map[string]*motorBuffer
	onOverflow func(motorID string, phase domain.Phase, dropped int)
}

type motorBuffer struct {
	phases [3][]float64
	times  [3][]time.Time
	seq    uint64
}

func NewAssembler(frameSize int, sampleRate float64) (*Assembler, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be > 0, got %d", frameSize)
	}
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("sample rate must be > 0, got %v", sampleRate)
	}
	return &Assembler{
		frameSize:  frameSize,
		sampleRate: sampleRate,
		motors:     make(map[string]*motorBuffer),
	}, nil
}

// OnOverflow registers fn to be told when a phase ran more than two frames
// ahead of a lagging phase and its oldest values were discarded.
func (a *Assembler) OnOverflow(fn func(motorID string, phase domain.Phase, dropped int)) {
	a.onOverflow = fn
}

// Add buffers the currents of s and returns a frame once every phase of the
// motor holds frameSize values, or nil. Leftover values start the next frame.
func (a *Assembler) Add(s *domain.Sample) *domain.Frame {
	if s == nil || s.MotorID == "" {
		return nil
	}
	b := a.motors[s.MotorID]
	if b == nil {
		b = &motorBuffer{}
		a.motors[s.MotorID] = b
	}
	for i, p := range domain.Phases {
		if v, ok := s.Currents[p]; ok {
			b.phases[i] = append(b.phases[i], v)
			b.times[i] = append(b.times[i], s.Timestamp)
		}
	}
	a.capSkew(s.MotorID, b)

	for i := range b.phases {
		if len(b.phases[i]) < a.frameSize {
			return nil
		}
	}

	captured := b.times[0][0]
	var ch [3][]float64
	for i := range b.phases {
		ch[i] = append([]float64(nil), b.phases[i][:a.frameSize]...)
		if t := b.times[i][0]; t.Before(captured) {
			captured = t
		}
		b.phases[i] = append(b.phases[i][:0], b.phases[i][a.frameSize:]...)
		b.times[i] = append(b.times[i][:0], b.times[i][a.frameSize:]...)
	}
	b.seq++

	return &domain.Frame{
		MotorID:    s.MotorID,
		Seq:        b.seq,
		CapturedAt: captured,
		Waveform: domain.Waveform{
			R:          ch[0],
			S:          ch[1],
			T:          ch[2],
			SampleRate: a.sampleRate,
		},
	}
}

// capSkew keeps a phase whose partner stopped delivering (a dead node, a
// missing topic) from growing without bound: past two frames it keeps only
// the latest frameSize values.
func (a *Assembler) capSkew(motorID string, b *motorBuffer) {
	for i, p := range domain.Phases {
		n := len(b.phases[i])
		if n <= 2*a.frameSize {
			continue
		}
		drop := n - a.frameSize
		b.phases[i] = append(b.phases[i][:0], b.phases[i][drop:]...)
		b.times[i] = append(b.times[i][:0], b.times[i][drop:]...)
		if a.onOverflow != nil {
			a.onOverflow(motorID, p, drop)
		}
	}
}

// Pending is the number of buffered values of the fullest phase of a motor.
func (a *Assembler) Pending(motorID string) int {
	b := a.motors[motorID]
	if b == nil {
		return 0
	}
	n := 0
	for i := range b.phases {
		if l := len(b.phases[i]); l > n {
			n = l
		}
	}
	return n
}
