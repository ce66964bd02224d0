package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"

	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"
)

// telemetry is the payload published by the motor gateways on the ingest
// topic. Absent phases are skipped.
type telemetry struct {
	ID string     `json:"id"`
	R  *float64   `json:"current_R"`
	S  *float64   `json:"current_S"`
	T  *float64   `json:"current_T"`
	TS *time.Time `json:"ts,omitempty"`
}

// Option configures the MQTT adapters.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger routes adapter diagnostics to z.
func WithLogger(z *zap.Logger) Option {
	return func(o *options) {
		if z != nil {
			o.log = z
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Collector subscribes to the telemetry topic and turns every message into a
// three-phase sample.
type Collector struct {
	cfg    Config
	log    *zap.Logger
	client *paho.Client
	cancel context.CancelFunc
	seq    map[string]uint64
	mu     sync.Mutex
}

func NewCollector(cfg Config, opts ...Option) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Collector{
		cfg: cfg,
		log: o.log.With(zap.String("collector", "mqtt"), zap.String("broker", cfg.Broker)),
		seq: make(map[string]uint64),
	}, nil
}

func (c *Collector) Start(out chan<- *domain.Sample) error {
	c.mu.Lock()
	if c.client != nil {
		c.mu.Unlock()
		return errors.New("mqtt collector already started")
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	handler := func(pr paho.PublishReceived) (bool, error) {
		s, err := c.decode(pr.Packet.Payload)
		if err != nil {
			c.log.Warn("dropping telemetry message", zap.String("topic", pr.Packet.Topic), zap.Error(err))
			return true, nil
		}
		select {
		case <-ctx.Done():
		case out <- s:
		}
		return true, nil
	}

	client, err := connect(ctx, c.cfg, c.cfg.ClientID, c.log, handler)
	if err != nil {
		cancel()
		return err
	}
	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: c.cfg.IngestTopic, QoS: c.cfg.QoS}},
	}); err != nil {
		cancel()
		_ = disconnect(client)
		return fmt.Errorf("mqtt subscribe %s: %w", c.cfg.IngestTopic, err)
	}

	c.mu.Lock()
	c.client = client
	c.cancel = cancel
	c.mu.Unlock()
	c.log.Info("mqtt collector started", zap.String("topic", c.cfg.IngestTopic))
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	client, cancel := c.client, c.cancel
	c.client, c.cancel = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := disconnect(client)
	_ = c.log.Sync()
	return err
}

func (c *Collector) decode(payload []byte) (*domain.Sample, error) {
	var m telemetry
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode telemetry: %w", err)
	}
	if m.ID == "" {
		return nil, errors.New("telemetry without id")
	}

	currents := make(map[domain.Phase]float64, 3)
	for p, v := range map[domain.Phase]*float64{domain.PhaseR: m.R, domain.PhaseS: m.S, domain.PhaseT: m.T} {
		if v != nil {
			currents[p] = *v
		}
	}
	if len(currents) == 0 {
		return nil, fmt.Errorf("telemetry for %s carries no phase current", m.ID)
	}

	ts := time.Now()
	if m.TS != nil && !m.TS.IsZero() {
		ts = *m.TS
	}

	c.mu.Lock()
	c.seq[m.ID]++
	seq := c.seq[m.ID]
	c.mu.Unlock()

	return &domain.Sample{
		MotorID:   m.ID,
		Timestamp: ts,
		Seq:       seq,
		Currents:  currents,
	}, nil
}

var _ ports.Collector = (*Collector)(nil)
