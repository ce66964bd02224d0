package electro

import (
	"go.uber.org/zap"

	base "github.com/giicoo/Dorsia-Electro/pkg/electro"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull         = base.ErrQueueFull
	ErrWALFull           = base.ErrWALFull
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrPublisherClosed   = base.ErrPublisherClosed
)

// Type aliases so consumers can import github.com/giicoo/Dorsia-Electro directly.
type (
	Config                  = base.Config
	Policy                  = base.Policy
	AnalysisConfig          = base.AnalysisConfig
	AnalysisOptions         = base.AnalysisOptions
	MachineParameters       = base.MachineParameters
	BearingGeometry         = base.BearingGeometry
	OPCUAConfig             = base.OPCUAConfig
	OPCUANodeConfig         = base.OPCUANodeConfig
	MQTTConfig              = base.MQTTConfig
	TimescaleConfig         = base.TimescaleConfig
	MetricsConfig           = base.MetricsConfig
	WALConfig               = base.WALConfig
	LogConfig               = base.LogConfig
	Flow                    = base.Flow
	FlowOption              = base.FlowOption
	StreamInOption          = base.StreamInOption
	StreamOutOption         = base.StreamOutOption
	EdgeRuntime             = base.EdgeRuntime
	EdgeRuntimeOption       = base.EdgeRuntimeOption
	Sample                  = base.Sample
	Frame                   = base.Frame
	Waveform                = base.Waveform
	Phase                   = base.Phase
	Report                  = base.Report
	Summary                 = base.Summary
	Condition               = base.Condition
	FailureMode             = base.FailureMode
	Recommendation          = base.Recommendation
	ReportBatchSink         = base.ReportBatchSink
	Collector               = base.Collector
	Sink                    = base.Sink
	Diagnoser               = base.Diagnoser
	FrameQueue              = base.FrameQueue
	WAL                     = base.WAL
	Observability           = base.Observability
	Field                   = base.Field
	QueuedFrame             = base.QueuedFrame
	WALEntryID              = base.WALEntryID
	WALStats                = base.WALStats
	ExternalPublisher       = base.ExternalPublisher
	ExternalPublisherConfig = base.ExternalPublisherConfig
)

// Phases and failure modes.
const (
	PhaseR = base.PhaseR
	PhaseS = base.PhaseS
	PhaseT = base.PhaseT

	ModeBearing      = base.ModeBearing
	ModeRotor        = base.ModeRotor
	ModeStator       = base.ModeStator
	ModeEccentricity = base.ModeEccentricity
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

func DefaultMachine() MachineParameters {
	return base.DefaultMachine()
}

// Diagnosis.
func Diagnose(p MachineParameters, w Waveform) (*Report, error) {
	return base.Diagnose(p, w)
}

func DefaultAnalysisOptions() AnalysisOptions {
	return base.DefaultAnalysisOptions()
}

func NewDiagnoser(cfg *Config, logger *zap.Logger) (Diagnoser, error) {
	return base.NewDiagnoser(cfg, logger)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...EdgeRuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInMachine(p MachineParameters) StreamInOption {
	return base.StreamInMachine(p)
}

func StreamInMotors(motors map[string]MachineParameters) StreamInOption {
	return base.StreamInMotors(motors)
}

func StreamInFrameSize(n int) StreamInOption {
	return base.StreamInFrameSize(n)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInQueue(q FrameQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInWAL(w WAL) StreamInOption {
	return base.StreamInWAL(w)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutAnalysis(o AnalysisOptions) StreamOutOption {
	return base.StreamOutAnalysis(o)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutDiagnoser(d Diagnoser) StreamOutOption {
	return base.StreamOutDiagnoser(d)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn ReportBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Edge runtime and options.
func NewEdgeRuntime(cfg *Config, opts ...EdgeRuntimeOption) (*EdgeRuntime, error) {
	return base.NewEdgeRuntime(cfg, opts...)
}

func WithCollector(col Collector) EdgeRuntimeOption {
	return base.WithCollector(col)
}

func WithSink(s Sink) EdgeRuntimeOption {
	return base.WithSink(s)
}

func WithDiagnoser(d Diagnoser) EdgeRuntimeOption {
	return base.WithDiagnoser(d)
}

func WithWAL(w WAL) EdgeRuntimeOption {
	return base.WithWAL(w)
}

func WithFrameQueue(q FrameQueue) EdgeRuntimeOption {
	return base.WithFrameQueue(q)
}

func WithObservability(obs Observability) EdgeRuntimeOption {
	return base.WithObservability(obs)
}

func WithLogger(l *zap.Logger) EdgeRuntimeOption {
	return base.WithLogger(l)
}

// Sink adapters.
func NewCallbackSink(name string, fn ReportBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []*Report, func()) {
	return base.NewChannelSink(name, buffer)
}

// External publisher.
func NewExternalPublisher(cfg *ExternalPublisherConfig, sink ReportBatchSink) (*ExternalPublisher, error) {
	return base.NewExternalPublisher(cfg, sink)
}
