package domain

import (
	"math"
	"time"
)

// Phase names one stator current channel.
type Phase string

const (
	PhaseR Phase = "R"
	PhaseS Phase = "S"
	PhaseT Phase = "T"
)

// Phases lists the channels in R, S, T order.
var Phases = [3]Phase{PhaseR, PhaseS, PhaseT}

// Valid reports whether p is one of R, S, T.
func (p Phase) Valid() bool {
	return p == PhaseR || p == PhaseS || p == PhaseT
}

// Waveform holds three equally long stator current channels.
type Waveform struct {
	R          []float64 `json:"current_R"`
	S          []float64 `json:"current_S"`
	T          []float64 `json:"current_T"`
	SampleRate float64   `json:"sample_rate"`
}

// Len is the per-channel sample count.
func (w Waveform) Len() int { return len(w.R) }

// Channel returns the samples of one phase.
func (w Waveform) Channel(p Phase) []float64 {
	switch p {
	case PhaseS:
		return w.S
	case PhaseT:
		return w.T
	default:
		return w.R
	}
}

// Validate enforces equal non-zero channel lengths, a positive sample rate
// and finite samples.
func (w Waveform) Validate() error {
	const op = "waveform"
	if !(w.SampleRate > 0) || math.IsInf(w.SampleRate, 0) {
		return InputErrorf(op, "sample rate must be > 0, got %v", w.SampleRate)
	}
	if len(w.R) == 0 {
		return InputErrorf(op, "empty waveform")
	}
	if len(w.S) != len(w.R) || len(w.T) != len(w.R) {
		return InputErrorf(op, "channel lengths differ: R=%d S=%d T=%d", len(w.R), len(w.S), len(w.T))
	}
	for _, p := range Phases {
		for i, v := range w.Channel(p) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return InputErrorf(op, "non-finite sample in phase %s at index %d", p, i)
			}
		}
	}
	return nil
}

// Sample is one collector reading. OPC UA yields a single phase per sample,
// MQTT telemetry carries all three.
type Sample struct {
	MotorID      string            `json:"motor_id"`
	Timestamp    time.Time         `json:"ts"`
	Seq          uint64            `json:"seq"`
	Currents     map[Phase]float64 `json:"currents"`
	SourceNodeID string            `json:"source_node_id,omitempty"`
}

// Frame is a complete waveform window for one motor, the unit persisted in
// the WAL and handed to the diagnoser.
type Frame struct {
	MotorID    string    `json:"motor_id"`
	Seq        uint64    `json:"seq"`
	CapturedAt time.Time `json:"captured_at"`
	Waveform   Waveform  `json:"waveform"`
}
