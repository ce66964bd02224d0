package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// PromObs exports runtime metrics to Prometheus and logs through zap.
type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer

	severity  *prometheus.GaugeVec
	condition *prometheus.GaugeVec
	asymmetry *prometheus.GaugeVec
	dqRatio   *prometheus.GaugeVec
	rms       *prometheus.GaugeVec
}

type Option func(*options)

type options struct {
	reg prometheus.Registerer
	log *zap.Logger
}

// WithRegisterer registers the collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithLogger routes Log* calls to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func NewPromObs(opts ...Option) *PromObs {
	o := options{reg: prometheus.DefaultRegisterer, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	collected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricSamplesCollected,
		Help: "Phase-current readings received from collectors.",
	})
	discarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricSamplesDiscarded,
		Help: "Readings discarded because another phase of the motor stopped delivering.",
	})
	assembled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricFramesAssembled,
		Help: "Complete waveform frames assembled from readings.",
	})
	diagnosed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricFramesDiagnosed,
		Help: "Frames diagnosed and written to the sink.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricFramesDropped,
		Help: "Frames lost to WAL or queue backpressure policies.",
	})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricDLQ,
		Help: "Frames whose diagnosis failed.",
	})
	walGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricWALSizeBytes,
		Help: "Size of the frame WAL on disk.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricQueueLength,
		Help: "Frames waiting for diagnosis.",
	})
	diagLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricDiagnosisLatency,
		Help:    "Time to diagnose one frame.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	sinkLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricSinkLatency,
		Help:    "Time to write one report batch to the sink.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	p := &PromObs{
		log: o.log,
		counters: map[string]prometheus.Counter{
			ports.MetricSamplesCollected: collected,
			ports.MetricSamplesDiscarded: discarded,
			ports.MetricFramesAssembled:  assembled,
			ports.MetricFramesDiagnosed:  diagnosed,
			ports.MetricFramesDropped:    dropped,
			ports.MetricDLQ:              dlq,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricWALSizeBytes: walGauge,
			ports.MetricQueueLength:  queueGauge,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricDiagnosisLatency: diagLatency,
			ports.MetricSinkLatency:      sinkLatency,
		},
		severity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: ports.MetricDefectSeverity,
			Help: "Latest severity score per motor and failure mode.",
		}, []string{"motor", "mode"}),
		condition: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: ports.MetricConditionLevel,
			Help: "Latest condition per motor and failure mode (0 normal .. 3 critical).",
		}, []string{"motor", "mode"}),
		asymmetry: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: ports.MetricPhaseAsymmetry,
			Help: "Latest phase-current asymmetry fraction per motor.",
		}, []string{"motor"}),
		dqRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: ports.MetricDQRatio,
			Help: "Latest SD(d)/SD(q) ratio per motor.",
		}, []string{"motor"}),
		rms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: ports.MetricPhaseCurrentRMS,
			Help: "Latest RMS current per motor and phase.",
		}, []string{"motor", "phase"}),
	}

	o.reg.MustRegister(collected, discarded, assembled, diagnosed, dropped, dlq, walGauge, queueGauge,
		diagLatency, sinkLatency, p.severity, p.condition, p.asymmetry, p.dqRatio, p.rms)
	return p
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveReport(r *domain.DiagnosisReport) {
	if r == nil {
		return
	}
	motor := r.MotorID
	for _, mode := range domain.FailureModes {
		a := r.Assessment(mode)
		p.severity.WithLabelValues(motor, string(mode)).Set(a.Severity)
		p.condition.WithLabelValues(motor, string(mode)).Set(float64(a.Condition.Level()))
	}
	p.asymmetry.WithLabelValues(motor).Set(r.PhaseAsymmetry)
	p.dqRatio.WithLabelValues(motor).Set(r.DQRatio)
	p.rms.WithLabelValues(motor, string(domain.PhaseR)).Set(r.PhaseRMS.R)
	p.rms.WithLabelValues(motor, string(domain.PhaseS)).Set(r.PhaseRMS.S)
	p.rms.WithLabelValues(motor, string(domain.PhaseT)).Set(r.PhaseRMS.T)
}

func (p *PromObs) RecordDLQ(id ports.WALEntryID, f *domain.Frame, err error) {
	p.IncCounter(ports.MetricDLQ, 1)
	fields := []zap.Field{zap.Uint64("wal_id", uint64(id)), zap.Error(err)}
	if f != nil {
		fields = append(fields, zap.String("motor", f.MotorID), zap.Uint64("seq", f.Seq))
	}
	p.log.Warn("frame_dlq", fields...)
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
