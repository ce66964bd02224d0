package electro

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/giicoo/Dorsia-Electro/internal/adapters/mqtt"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/observability"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/opcua"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/queue"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/sink"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/wal"
	"github.com/giicoo/Dorsia-Electro/internal/app/config"
	"github.com/giicoo/Dorsia-Electro/internal/app/pipeline"
	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/logging"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// compactEvery is the number of gauge ticks between WAL compactions.
const compactEvery = 60

// EdgeRuntimeOption customizes the dependencies used by EdgeRuntime.
type EdgeRuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	sink          Sink
	diagnoser     Diagnoser
	wal           WAL
	queue         FrameQueue
	observability Observability
	logger        *zap.Logger
}

// WithCollector injects a custom collector implementation (Modbus, simulators, replay files, etc.).
func WithCollector(col Collector) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithSink injects a custom sink so reports can be sent to any database or API.
func WithSink(s Sink) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithDiagnoser overrides the diagnoser built from the analysis config.
func WithDiagnoser(d Diagnoser) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.diagnoser = d
	}
}

// WithWAL lets callers bring their own WAL implementation or reuse an existing instance.
func WithWAL(w WAL) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.wal = w
	}
}

// WithFrameQueue injects a custom queue implementation.
func WithFrameQueue(q FrameQueue) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend (OpenTelemetry, structured logs, etc.).
func WithObservability(obs Observability) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger replaces the logger built from the log section of the config.
func WithLogger(l *zap.Logger) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// EdgeRuntime wires up the collector → frames → WAL → queue → diagnose → sink
// pipeline and exposes simple lifecycle hooks for embedding inside any Go service.
type EdgeRuntime struct {
	cfg       *Config
	policy    ports.Policy
	log       *zap.Logger
	obs       ports.Observability
	registry  *prometheus.Registry
	wal       ports.WAL
	queue     ports.FrameQueue
	collector ports.Collector
	assembler *pipeline.Assembler
	diagnoser ports.Diagnoser
	sink      ports.Sink
	schema    *sink.TimescaleSink
	db        *sql.DB
	closers   []io.Closer

	cancel      context.CancelFunc
	metricsSrv  *http.Server
	gaugeStopCh chan struct{}
	edgeDoneCh  <-chan struct{}
	ingestDone  chan struct{}
	shutdown    sync.Once
}

// NewEdgeRuntime bootstraps the default adapters (OPC UA or MQTT collector,
// file WAL, in-memory queue, configured diagnoser, Timescale and/or MQTT
// report sinks, Prometheus observability). EdgeRuntimeOption values override
// any of them.
func NewEdgeRuntime(cfg *Config, opts ...EdgeRuntimeOption) (*EdgeRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	logger := overrides.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
	}

	e := &EdgeRuntime{cfg: cfg, policy: cfg.Policy, log: logger}
	ok := false
	defer func() {
		if !ok {
			e.closeOwned()
		}
	}()

	e.obs = overrides.observability
	if e.obs == nil {
		e.registry = prometheus.NewRegistry()
		e.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		e.obs = observability.NewPromObs(observability.WithRegisterer(e.registry), observability.WithLogger(logger))
	}

	if overrides.wal != nil {
		e.wal = overrides.wal
	} else {
		fw, err := wal.NewFileWAL(cfg.WAL.Dir)
		if err != nil {
			return nil, err
		}
		e.wal = fw
		e.closers = append(e.closers, fw)
	}

	e.queue = overrides.queue
	if e.queue == nil {
		e.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	asm, err := pipeline.NewAssembler(cfg.Analysis.FrameSize, cfg.Analysis.SampleRate)
	if err != nil {
		return nil, err
	}
	e.assembler = asm

	e.diagnoser = overrides.diagnoser
	if e.diagnoser == nil {
		if e.diagnoser, err = NewDiagnoser(cfg, logger); err != nil {
			return nil, err
		}
	}

	e.collector = overrides.collector
	if e.collector == nil {
		if e.collector, err = newCollector(cfg, logger); err != nil {
			return nil, err
		}
	}

	e.sink = overrides.sink
	if e.sink == nil {
		if err := e.buildSinks(); err != nil {
			return nil, err
		}
	}

	ok = true
	return e, nil
}

func newCollector(cfg *Config, logger *zap.Logger) (Collector, error) {
	switch cfg.Collector {
	case config.CollectorOPCUA:
		return opcua.NewCollector(cfg.OPCUA, opcua.WithLogger(logger))
	case config.CollectorMQTT:
		return mqtt.NewCollector(cfg.MQTT, mqtt.WithLogger(logger))
	default:
		return nil, fmt.Errorf("no collector configured")
	}
}

// buildSinks fans reports out to every configured destination.
func (e *EdgeRuntime) buildSinks() error {
	var members []ports.Sink
	if e.cfg.Timescale.ConnString != "" {
		db, err := sql.Open("postgres", e.cfg.Timescale.ConnString)
		if err != nil {
			return err
		}
		e.db = db
		e.schema = sink.NewTimescaleSink(db, e.cfg.Timescale.Table)
		members = append(members, e.schema)
	}
	if e.cfg.MQTT.PublishReports {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		pub, err := mqtt.NewPublisher(ctx, e.cfg.MQTT, mqtt.WithLogger(e.log))
		if err != nil {
			return err
		}
		e.closers = append(e.closers, pub)
		members = append(members, pub)
	}

	multi := sink.NewMulti(members...)
	if multi.Len() == 0 {
		return fmt.Errorf("no report sink configured")
	}
	if multi.Len() == 1 {
		e.sink = members[0]
	} else {
		e.sink = multi
	}
	return nil
}

// Start replays the WAL, begins the edge + ingest pipelines and launches the
// observability stack. It returns immediately; call Run to block on a context instead.
func (e *EdgeRuntime) Start() error {
	if e == nil {
		return fmt.Errorf("edge runtime is nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if e.schema != nil {
		sctx, scancel := context.WithTimeout(ctx, 30*time.Second)
		err := e.schema.EnsureSchema(sctx)
		scancel()
		if err != nil {
			cancel()
			return fmt.Errorf("ensure report table: %w", err)
		}
	}

	e.ingestDone = make(chan struct{})
	go func() {
		defer close(e.ingestDone)
		pipeline.RunIngestPipeline(ctx, e.wal, e.queue, e.diagnoser, e.sink, e.policy, e.obs)
	}()

	if err := replayWALIntoQueue(ctx, e.wal, e.queue, e.policy, e.obs); err != nil {
		cancel()
		return err
	}

	done, err := pipeline.RunEdgePipeline(ctx, e.collector, e.assembler, e.wal, e.queue, e.policy, e.obs)
	if err != nil {
		cancel()
		return err
	}
	e.edgeDoneCh = done

	e.startMetrics()
	e.obs.LogInfo("edge_runtime_started",
		ports.Field{Key: "diagnoser", Value: e.diagnoser.Version()},
		ports.Field{Key: "sink", Value: e.sink.Name()})
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (e *EdgeRuntime) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// Shutdown stops the pipelines, the collector, the metrics server and
// releases the WAL, broker and DB connections owned by the runtime.
func (e *EdgeRuntime) Shutdown(ctx context.Context) error {
	var errs []error
	e.shutdown.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		for _, ch := range []<-chan struct{}{e.edgeDoneCh, e.ingestDone} {
			if ch == nil {
				continue
			}
			select {
			case <-ch:
			case <-ctx.Done():
				errs = append(errs, ctx.Err())
			}
		}

		if e.gaugeStopCh != nil {
			close(e.gaugeStopCh)
		}
		if e.metricsSrv != nil {
			if err := e.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}
		if e.edgeDoneCh == nil && e.collector != nil {
			// Start never ran the edge loop that owns the collector.
			if err := e.collector.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := e.closeOwned(); err != nil {
			errs = append(errs, err)
		}
		_ = e.log.Sync()
	})
	return errors.Join(errs...)
}

func (e *EdgeRuntime) closeOwned() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
		e.db = nil
	}
	return errors.Join(errs...)
}

// MetricsHandler serves the runtime's own registry, or the default one
// when a custom Observability was injected.
func (e *EdgeRuntime) MetricsHandler() http.Handler {
	if e.registry != nil {
		return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func (e *EdgeRuntime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	e.metricsSrv = &http.Server{
		Addr:              e.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := e.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics server exited", zap.Error(err))
		}
	}()

	e.gaugeStopCh = make(chan struct{})
	go e.recordResourceGauges(e.gaugeStopCh, time.Second)
}

// recordResourceGauges refreshes the WAL and queue gauges and periodically
// compacts committed WAL records.
func (e *EdgeRuntime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if tick%compactEvery == 0 {
				if err := e.wal.TruncateCommitted(); err != nil {
					e.obs.LogError("wal_compact_failed", err)
				}
			}
			stats := e.wal.Stats()
			e.obs.SetGauge(ports.MetricWALSizeBytes, float64(stats.SizeBytes))
			e.obs.SetGauge(ports.MetricQueueLength, float64(e.queue.Len()))
		}
	}
}

// replayWALIntoQueue re-enqueues every uncommitted frame. Frames are read
// first and enqueued afterwards so the WAL is not held while the queue
// waits for the ingest loop.
func replayWALIntoQueue(ctx context.Context, walAdapter ports.WAL, q ports.FrameQueue, pol ports.Policy, obs ports.Observability) error {
	stats := walAdapter.Stats()
	if stats.LatestAppended == 0 {
		return nil
	}
	start := stats.OldestUncommitted
	if start == 0 || start > stats.LatestAppended {
		return nil
	}

	var pending []ports.QueuedFrame
	err := walAdapter.Iterate(start, func(id ports.WALEntryID, f *domain.Frame) error {
		pending = append(pending, ports.QueuedFrame{ID: id, Frame: f})
		return nil
	})
	if err != nil {
		return err
	}

	replay := pol
	if replay.OnQueueFull == "drop" || replay.OnQueueFull == "reject" {
		replay.OnQueueFull = "reject"
	} else {
		replay.OnQueueFull = "block"
	}
	for i, item := range pending {
		if !pipeline.EnqueueWithPolicy(ctx, q, item.ID, item.Frame, replay, obs) {
			return fmt.Errorf("queue full during WAL replay after %d of %d frames", i, len(pending))
		}
	}
	if len(pending) > 0 {
		obs.LogInfo("wal_replay_complete",
			ports.Field{Key: "frames", Value: len(pending)},
			ports.Field{Key: "from_id", Value: start})
	}
	return nil
}
