package electro

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/giicoo/Dorsia-Electro/internal/adapters/observability"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/queue"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/wal"
	"github.com/giicoo/Dorsia-Electro/internal/app/pipeline"
	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// ErrQueueFull indicates the in-memory queue rejected the frame according to policy.
var ErrQueueFull = pipeline.ErrQueueFull

// ErrWALFull indicates the WAL is at capacity and OnWALFull != "block".
var ErrWALFull = pipeline.ErrWALFull

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("electro: publisher closed")

// ExternalPublisherConfig configures the WAL-backed publisher used by callers
// that acquire waveforms themselves.
type ExternalPublisherConfig struct {
	Policy Policy
	WAL    WALConfig
	// Machine is used for every motor; zero means DefaultMachine.
	Machine MachineParameters
	// Diagnoser overrides the default-calibrated diagnoser.
	Diagnoser Diagnoser
	Logger    *zap.Logger
}

// applyDefaults fills in sane thresholds so callers only override what they need.
func (c *ExternalPublisherConfig) applyDefaults() {
	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 2 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 64
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 8
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/electro-wal"
	}
	if c.Machine == (MachineParameters{}) {
		c.Machine = DefaultMachine()
	}
}

func (c *ExternalPublisherConfig) validate() error {
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	if c.Policy.MaxQueueLen <= 0 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	return c.Machine.Validate()
}

// ExternalPublisher exposes the WAL→queue→diagnose→callback pipeline to
// external producers.
type ExternalPublisher struct {
	policy Policy
	wal    *wal.FileWAL
	queue  ports.FrameQueue
	obs    ports.Observability

	mu     sync.Mutex
	seq    map[string]uint64
	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
	closed bool
}

// NewExternalPublisher wires a WAL + bounded queue + diagnoser + sink callback
// so callers can push waveforms while reusing the durability/backpressure policies.
// Frames left uncommitted by a previous process are diagnosed first.
func NewExternalPublisher(cfg *ExternalPublisherConfig, sink ReportBatchSink) (*ExternalPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink callback is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := cfg.Diagnoser
	if d == nil {
		dc := DefaultConfig()
		dc.Machine = cfg.Machine
		var err error
		if d, err = NewDiagnoser(dc, logger); err != nil {
			return nil, err
		}
	}

	walAdapter, err := wal.NewFileWAL(cfg.WAL.Dir)
	if err != nil {
		return nil, err
	}
	obs := observability.NewPromObs(
		observability.WithRegisterer(prometheus.NewRegistry()),
		observability.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	pub := &ExternalPublisher{
		policy: cfg.Policy,
		wal:    walAdapter,
		queue:  queue.NewMemQueue(cfg.Policy.MaxQueueLen),
		obs:    obs,
		seq:    make(map[string]uint64),
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}

	go func() {
		defer close(pub.doneCh)
		pipeline.RunIngestPipeline(ctx, pub.wal, pub.queue, d, NewCallbackSink("external", sink), pub.policy, obs)
	}()

	if err := replayWALIntoQueue(ctx, walAdapter, pub.queue, cfg.Policy, obs); err != nil {
		_ = pub.Close(context.Background())
		return nil, err
	}
	return pub, nil
}

// Publish appends the frame to the WAL and enqueues it according to policy.
func (p *ExternalPublisher) Publish(f *Frame) error {
	if f == nil || f.MotorID == "" {
		return domain.InputErrorf("publish", "frame needs a motor id")
	}
	if err := f.Waveform.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPublisherClosed
	}
	return pipeline.PersistFrame(p.ctx, f, p.wal, p.queue, p.policy, p.obs)
}

// PublishWaveform wraps w in a frame stamped with the next sequence number of
// motorID and the current time.
func (p *ExternalPublisher) PublishWaveform(motorID string, w Waveform) error {
	p.mu.Lock()
	p.seq[motorID]++
	seq := p.seq[motorID]
	p.mu.Unlock()

	return p.Publish(&Frame{MotorID: motorID, Seq: seq, CapturedAt: time.Now().UTC(), Waveform: w})
}

// Close stops the ingest loop, waits for it respecting ctx and closes the WAL.
// Frames still queued stay in the WAL for the next publisher.
func (p *ExternalPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	select {
	case <-p.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.wal.Close()
}
