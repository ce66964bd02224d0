package electro

import (
	"math"
	"sync"
	"time"
)

const testRate = 25600.0

// testConfig is a small-frame configuration that diagnoses quickly.
func testConfig(dir string) *Config {
	cfg := DefaultConfig()
	cfg.Analysis.FrameSize = 16384
	cfg.Analysis.Window = 8192
	park := 1000
	cfg.Analysis.ParkSamples = &park
	cfg.Policy.IdleSleep = time.Millisecond
	cfg.Policy.MaxQueueLen = 8
	cfg.Policy.MaxBatchSize = 4
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.WAL.Dir = dir
	return cfg
}

// synthetic returns n balanced 60 Hz three-phase samples.
func synthetic(n int) Waveform {
	w := Waveform{R: make([]float64, n), S: make([]float64, n), T: make([]float64, n), SampleRate: testRate}
	for i := 0; i < n; i++ {
		wt := 2 * math.Pi * 60 * float64(i) / testRate
		w.R[i] = 10 * math.Sin(wt)
		w.S[i] = 10 * math.Sin(wt-2*math.Pi/3)
		w.T[i] = 10 * math.Sin(wt+2*math.Pi/3)
	}
	return w
}

// waveCollector replays a waveform as three-phase samples of one motor.
type waveCollector struct {
	motor string
	wave  Waveform
	stop  chan struct{}
	once  sync.Once
}

func newWaveCollector(motor string, w Waveform) *waveCollector {
	return &waveCollector{motor: motor, wave: w, stop: make(chan struct{})}
}

func (c *waveCollector) Start(out chan<- *Sample) error {
	go func() {
		start := time.Now()
		for i := 0; i < c.wave.Len(); i++ {
			s := &Sample{
				MotorID:   c.motor,
				Seq:       uint64(i + 1),
				Timestamp: start.Add(time.Duration(float64(i) / c.wave.SampleRate * float64(time.Second))),
				Currents:  map[Phase]float64{PhaseR: c.wave.R[i], PhaseS: c.wave.S[i], PhaseT: c.wave.T[i]},
			}
			select {
			case out <- s:
			case <-c.stop:
				return
			}
		}
	}()
	return nil
}

func (c *waveCollector) Stop() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

type stubCollector struct{}

func (s *stubCollector) Start(out chan<- *Sample) error { return nil }
func (s *stubCollector) Stop() error                    { return nil }

type stubSink struct{}

func (s *stubSink) WriteBatch(reports []*Report) error { return nil }
func (s *stubSink) Name() string                       { return "stub" }

type stubDiagnoser struct{}

func (s *stubDiagnoser) DiagnoseFrame(f *Frame) (*Report, error) {
	return &Report{MotorID: f.MotorID, Seq: f.Seq}, nil
}
func (s *stubDiagnoser) Version() string { return "stub" }

type stubQueue struct{}

func (s *stubQueue) Enqueue(id WALEntryID, f *Frame) bool { return true }
func (s *stubQueue) DequeueBatch(max int) []QueuedFrame   { return nil }
func (s *stubQueue) Len() int                             { return 0 }

type stubWAL struct{}

func (s *stubWAL) Append(f *Frame) (WALEntryID, error) { return 0, nil }
func (s *stubWAL) Iterate(from WALEntryID, fn func(id WALEntryID, f *Frame) error) error {
	return nil
}
func (s *stubWAL) Commit(upto WALEntryID) error { return nil }
func (s *stubWAL) TruncateCommitted() error     { return nil }
func (s *stubWAL) Stats() WALStats              { return WALStats{} }

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)            {}
func (s *stubObservability) LogError(string, error, ...Field)    {}
func (s *stubObservability) LogCritical(string, error, ...Field) {}
func (s *stubObservability) IncCounter(string, float64)          {}
func (s *stubObservability) ObserveLatency(string, float64)      {}
func (s *stubObservability) SetGauge(string, float64)            {}
func (s *stubObservability) ObserveReport(*Report)               {}
func (s *stubObservability) RecordDLQ(WALEntryID, *Frame, error) {}
