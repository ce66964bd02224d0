package electro

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/giicoo/Dorsia-Electro/internal/app/diagnosis"
	"github.com/giicoo/Dorsia-Electro/internal/logging"
)

// Flow builds an EdgeRuntime in three steps: Conf loads the plant
// configuration, StreamIN says where currents come from and which motors they
// belong to, StreamOUT fixes the analysis and where reports go.
//
// Machine and analysis overrides are applied to a copy of the configuration
// when the runtime is built; the Config passed to ConfFromConfig is never
// modified by them.
type Flow struct {
	cfg *Config

	machine   *MachineParameters
	motors    map[string]MachineParameters
	frameSize int
	analysis  *AnalysisOptions

	opts []EdgeRuntimeOption
	errs []error
}

// FlowOption adjusts a Flow right after its configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the acquisition side: collector, motors, framing
// and durability.
type StreamInOption func(*Flow)

// StreamOutOption configures the analysis side: calibration, diagnoser and
// report sinks.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk and returns a Flow over it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the loaded configuration.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw EdgeRuntimeOption values.
func (f *Flow) Options(opts ...EdgeRuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.use(opts...)
	return f
}

// StreamIN records acquisition overrides.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records analysis overrides and builds the runtime. Invalid
// machine data or calibration recorded by any earlier option is reported
// here, joined.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*EdgeRuntime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if len(f.errs) > 0 {
		return nil, errors.Join(f.errs...)
	}

	cfg, err := f.resolve()
	if err != nil {
		return nil, err
	}
	runtimeOpts := f.opts
	if f.analysis != nil {
		// Prepended so an explicit StreamOutDiagnoser still wins.
		d, err := f.analysisDiagnoser(cfg)
		if err != nil {
			return nil, err
		}
		runtimeOpts = append([]EdgeRuntimeOption{WithDiagnoser(d)}, f.opts...)
	}
	return NewEdgeRuntime(cfg, runtimeOpts...)
}

// Run builds the runtime with StreamOUT and runs it until ctx ends.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// resolve returns the configuration the runtime is built from.
func (f *Flow) resolve() (*Config, error) {
	if f.machine == nil && f.motors == nil && f.frameSize == 0 {
		return f.cfg, nil
	}
	cfg := *f.cfg
	if f.machine != nil {
		cfg.Machine = *f.machine
	}
	if f.motors != nil {
		cfg.Motors = maps.Clone(f.cfg.Motors)
		if cfg.Motors == nil {
			cfg.Motors = make(map[string]MachineParameters, len(f.motors))
		}
		maps.Copy(cfg.Motors, f.motors)
	}
	if f.frameSize != 0 {
		cfg.Analysis.FrameSize = f.frameSize
	}
	// StreamOutAnalysis brings its own window and subsample; analysisDiagnoser
	// checks those.
	if f.analysis == nil {
		a := cfg.Analysis
		if a.Window > a.FrameSize {
			return nil, fmt.Errorf("spectral window %d exceeds frame size %d", a.Window, a.FrameSize)
		}
		if a.ParkSamples != nil && *a.ParkSamples > a.FrameSize {
			return nil, fmt.Errorf("park subsample %d exceeds frame size %d", *a.ParkSamples, a.FrameSize)
		}
	}
	return &cfg, nil
}

func (f *Flow) analysisDiagnoser(cfg *Config) (Diagnoser, error) {
	o := *f.analysis
	if o.Window > cfg.Analysis.FrameSize {
		return nil, fmt.Errorf("spectral window %d exceeds frame size %d", o.Window, cfg.Analysis.FrameSize)
	}
	if o.ParkSamples > cfg.Analysis.FrameSize {
		return nil, fmt.Errorf("park subsample %d exceeds frame size %d", o.ParkSamples, cfg.Analysis.FrameSize)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	d, err := diagnosis.New(o, logging.Logr(logger))
	if err != nil {
		return nil, err
	}
	fd, err := diagnosis.NewFrameDiagnoser(d, cfg.Machine, cfg.Motors)
	if err != nil {
		return nil, err
	}
	return fd, nil
}

func (f *Flow) use(opts ...EdgeRuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}

func (f *Flow) fail(err error) {
	f.errs = append(f.errs, err)
}

// WithFlowOptions appends EdgeRuntimeOption values during Conf.
func WithFlowOptions(opts ...EdgeRuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.use(opts...)
		}
	}
}

// StreamInMachine replaces the plant default machine, used for every motor
// without its own entry.
func StreamInMachine(p MachineParameters) StreamInOption {
	return func(f *Flow) {
		if f == nil {
			return
		}
		if err := p.Validate(); err != nil {
			f.fail(fmt.Errorf("machine: %w", err))
			return
		}
		f.machine = &p
	}
}

// StreamInMotors adds or replaces per-motor machine data on top of the
// configured motors.
func StreamInMotors(motors map[string]MachineParameters) StreamInOption {
	return func(f *Flow) {
		if f == nil {
			return
		}
		for id, p := range motors {
			if id == "" {
				f.fail(fmt.Errorf("motors: empty motor id"))
				continue
			}
			if err := p.Validate(); err != nil {
				f.fail(fmt.Errorf("motors.%s: %w", id, err))
				continue
			}
			if f.motors == nil {
				f.motors = make(map[string]MachineParameters, len(motors))
			}
			f.motors[id] = p
		}
	}
}

// StreamInFrameSize sets how many samples per motor make one diagnosed frame.
func StreamInFrameSize(n int) StreamInOption {
	return func(f *Flow) {
		if f == nil {
			return
		}
		if n <= 0 {
			f.fail(fmt.Errorf("frame size must be > 0, got %d", n))
			return
		}
		f.frameSize = n
	}
}

// StreamInCollector injects a custom current source.
func StreamInCollector(col Collector) StreamInOption {
	return func(f *Flow) {
		if f != nil && col != nil {
			f.use(WithCollector(col))
		}
	}
}

// StreamInQueue swaps the in-memory frame queue.
func StreamInQueue(q FrameQueue) StreamInOption {
	return func(f *Flow) {
		if f != nil && q != nil {
			f.use(WithFrameQueue(q))
		}
	}
}

// StreamInWAL swaps the file WAL.
func StreamInWAL(w WAL) StreamInOption {
	return func(f *Flow) {
		if f != nil && w != nil {
			f.use(WithWAL(w))
		}
	}
}

// StreamInObservability overrides the Prometheus observability backend.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.use(WithObservability(obs))
		}
	}
}

// StreamOutAnalysis diagnoses frames with o instead of the analysis section
// of the configuration. The configured machines still apply.
func StreamOutAnalysis(o AnalysisOptions) StreamOutOption {
	return func(f *Flow) {
		if f == nil {
			return
		}
		if err := o.Validate(); err != nil {
			f.fail(err)
			return
		}
		f.analysis = &o
	}
}

// StreamOutDiagnoser replaces frame diagnosis altogether.
func StreamOutDiagnoser(d Diagnoser) StreamOutOption {
	return func(f *Flow) {
		if f != nil && d != nil {
			f.use(WithDiagnoser(d))
		}
	}
}

// StreamOutSink sends reports to s instead of the configured sinks.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.use(WithSink(s))
		}
	}
}

// StreamOutCallback sends report batches to fn.
func StreamOutCallback(name string, fn ReportBatchSink) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.use(WithSink(NewCallbackSink(name, fn)))
		}
	}
}

// StreamOutObservability overrides the Prometheus observability backend.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.use(WithObservability(obs))
		}
	}
}
