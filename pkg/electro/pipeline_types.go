package electro

import (
	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

type (
	// Sample is one collector reading of one or more phase currents.
	Sample = domain.Sample
	// Frame is a complete three-phase window for one motor; it is the unit
	// stored in the WAL and diagnosed.
	Frame = domain.Frame
	// Waveform holds the three phase channels and their sample rate.
	Waveform = domain.Waveform
	// Phase names a current channel.
	Phase = domain.Phase
	// Report is the diagnosis of one frame.
	Report = domain.DiagnosisReport
	// Summary is the flat JSON projection of a report.
	Summary = domain.Summary
	// Condition is a four-tier health label.
	Condition = domain.Condition
	// FailureMode names a diagnosed failure family.
	FailureMode = domain.FailureMode
	// Recommendation is the maintenance advice of a report.
	Recommendation = domain.Recommendation
)

// Phases and failure modes.
const (
	PhaseR = domain.PhaseR
	PhaseS = domain.PhaseS
	PhaseT = domain.PhaseT

	ModeBearing      = domain.ModeBearing
	ModeRotor        = domain.ModeRotor
	ModeStator       = domain.ModeStator
	ModeEccentricity = domain.ModeEccentricity
)

// QueuedFrame represents an item buffered inside the bounded queue.
type QueuedFrame = ports.QueuedFrame

// Collector streams samples from any data source (OPC UA, MQTT, simulators) into the pipeline.
type Collector = ports.Collector

// FrameQueue is the bounded, in-memory queue that decouples framing and diagnosis.
type FrameQueue = ports.FrameQueue

// Diagnoser turns frames into reports.
type Diagnoser = ports.Diagnoser

// Sink consumes batches of reports and persists or forwards them.
type Sink = ports.Sink

// Observability emits metrics/logs about throughput, latency, and DLQ conditions.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// WAL abstracts the write-ahead log used for durability and crash recovery.
type WAL = ports.WAL

// WALStats exposes WAL metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a WAL entry.
type WALEntryID = ports.WALEntryID
