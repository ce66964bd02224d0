package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"

	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"
)

// Publisher is a sink that publishes each report summary on
// <prefix>/<motor>/diagnosis.
type Publisher struct {
	cfg    Config
	log    *zap.Logger
	client *paho.Client
}

func NewPublisher(ctx context.Context, cfg Config, opts ...Option) (*Publisher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	log := o.log.With(zap.String("sink", "mqtt"), zap.String("broker", cfg.Broker))

	client, err := connect(ctx, cfg, cfg.ClientID+"-pub", log, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{cfg: cfg, log: log, client: client}, nil
}

func (p *Publisher) Name() string { return "mqtt" }

func (p *Publisher) WriteBatch(reports []*domain.DiagnosisReport) error {
	var errs []error
	for _, r := range reports {
		if err := p.publish(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) publish(r *domain.DiagnosisReport) error {
	payload, err := json.Marshal(r.Summary())
	if err != nil {
		return fmt.Errorf("encode summary for %s: %w", r.MotorID, err)
	}
	topic := p.cfg.ReportTopic(r.MotorID)

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
	defer cancel()
	if _, err := p.client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     p.cfg.QoS,
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
		},
	}); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	err := disconnect(p.client)
	_ = p.log.Sync()
	return err
}

var _ ports.Sink = (*Publisher)(nil)
