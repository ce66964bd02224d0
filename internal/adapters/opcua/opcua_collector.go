package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"

	"github.com/cenkalti/backoff/v5"
	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"go.uber.org/zap"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	ConnectRetries   int           `yaml:"connect_retries"`
	Nodes            []NodeConfig  `yaml:"nodes"`
}

// NodeConfig binds one phase-current tag to a motor. Array-valued tags
// yield one sample per element, in order.
type NodeConfig struct {
	NodeID  string       `yaml:"node_id"`
	MotorID string       `yaml:"motor_id"`
	Phase   domain.Phase `yaml:"phase"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "Electro Diagnostics Edge"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 250 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = 5
	}
	for i := range c.Nodes {
		if c.Nodes[i].MotorID == "" {
			c.Nodes[i].MotorID = c.Nodes[i].NodeID
		}
		c.Nodes[i].Phase = domain.Phase(strings.ToUpper(string(c.Nodes[i].Phase)))
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.NodeID == "" {
			return errors.New("node_id is required")
		}
		if !n.Phase.Valid() {
			return fmt.Errorf("node %q: phase must be R, S or T, got %q", n.NodeID, n.Phase)
		}
		key := n.MotorID + "/" + string(n.Phase)
		if seen[key] {
			return fmt.Errorf("node %q: phase %s of motor %q is already mapped", n.NodeID, n.Phase, n.MotorID)
		}
		seen[key] = true
	}
	return nil
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger routes collector diagnostics to z.
func WithLogger(z *zap.Logger) Option {
	return func(c *Collector) {
		if z != nil {
			c.log = z
		}
	}
}

type Collector struct {
	cfg       Config
	log       *zap.Logger
	client    *opcua.Client
	sub       *opcua.Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	handleMap map[uint32]NodeConfig
	seq       map[string]uint64
	mu        sync.Mutex
	started   bool
}

func NewCollector(cfg Config, opts ...Option) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Collector{
		cfg: cfg,
		log: zap.NewNop(),
		seq: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("collector", "opcua"), zap.String("endpoint", cfg.Endpoint))
	return c, nil
}

func (c *Collector) Start(out chan<- *domain.Sample) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("opcua collector already started")
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	client, err := c.connect(ctx)
	if err != nil {
		cancel()
		return err
	}

	notifyCh := make(chan *opcua.PublishNotificationData, len(c.cfg.Nodes)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: c.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		cancel()
		_ = client.Close(ctx)
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	handleMap := make(map[uint32]NodeConfig, len(c.cfg.Nodes))
	for i, node := range c.cfg.Nodes {
		nodeID, err := ua.ParseNodeID(node.NodeID)
		if err != nil {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("parse node id %q: %w", node.NodeID, err)
		}
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		if c.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(c.cfg.SamplingInterval / time.Millisecond)
		}
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q: %w", node.NodeID, err)
		}
		if len(res.Results) == 0 {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q failed: empty result", node.NodeID)
		}
		if res.Results[0].StatusCode != ua.StatusOK {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q failed: %s", node.NodeID, res.Results[0].StatusCode)
		}
		handleMap[handle] = node
	}

	c.mu.Lock()
	c.client = client
	c.sub = sub
	c.cancel = cancel
	c.handleMap = handleMap
	c.started = true
	c.mu.Unlock()

	c.log.Info("opcua collector started", zap.Int("nodes", len(handleMap)))
	c.wg.Add(1)
	go c.consume(ctx, notifyCh, out)
	return nil
}

// connect dials the endpoint with exponential backoff. Option errors are
// permanent; connection errors are retried up to ConnectRetries times.
func (c *Collector) connect(ctx context.Context) (*opcua.Client, error) {
	clientOpts := c.buildClientOptions()
	client, err := backoff.Retry(ctx, func() (*opcua.Client, error) {
		cl, err := opcua.NewClient(c.cfg.Endpoint, clientOpts...)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("opcua new client: %w", err))
		}
		if err := cl.Connect(ctx); err != nil {
			return nil, fmt.Errorf("opcua connect: %w", err)
		}
		return cl, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.cfg.ConnectRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("opcua connect failed, retrying", zap.Error(err), zap.Duration("backoff", next))
		}),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	sub := c.sub
	client := c.client
	c.started = false
	c.cancel = nil
	c.sub = nil
	c.client = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if sub != nil {
		if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if client != nil {
		if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}

	c.wg.Wait()
	_ = c.log.Sync()
	return err
}

func (c *Collector) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData, out chan<- *domain.Sample) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				c.log.Warn("notification error", zap.Error(notif.Error))
				continue
			}
			data, ok := notif.Value.(*ua.DataChangeNotification)
			if !ok {
				continue
			}
			for _, s := range c.samples(data) {
				select {
				case <-ctx.Done():
					return
				case out <- s:
				}
			}
		}
	}
}

// samples converts one data-change notification into phase samples.
func (c *Collector) samples(data *ua.DataChangeNotification) []*domain.Sample {
	var res []*domain.Sample
	for _, item := range data.MonitoredItems {
		if item == nil || item.Value == nil {
			continue
		}
		node, ok := c.handleMap[item.ClientHandle]
		if !ok {
			continue
		}
		values, ok := variantToFloats(item.Value.Value)
		if !ok {
			c.log.Warn("skipping node with unsupported value type",
				zap.String("node", node.NodeID), zap.String("type", fmt.Sprintf("%T", variantValue(item.Value.Value))))
			continue
		}

		ts := item.Value.SourceTimestamp
		if ts.IsZero() {
			ts = item.Value.ServerTimestamp
		}
		if ts.IsZero() {
			ts = time.Now()
		}

		for _, v := range values {
			res = append(res, &domain.Sample{
				MotorID:      node.MotorID,
				Timestamp:    ts,
				Seq:          c.nextSeq(node.NodeID),
				Currents:     map[domain.Phase]float64{node.Phase: v},
				SourceNodeID: node.NodeID,
			})
		}
	}
	return res
}

func (c *Collector) nextSeq(node string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.seq[node] + 1
	c.seq[node] = next
	return next
}

func (c *Collector) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(c.cfg.SecurityPolicy)),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if c.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func (c *Collector) cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
}

func variantValue(v *ua.Variant) any {
	if v == nil {
		return nil
	}
	return v.Value()
}

// variantToFloats accepts numeric scalars and one-dimensional numeric arrays.
func variantToFloats(v *ua.Variant) ([]float64, bool) {
	if v == nil {
		return nil, false
	}
	if f, ok := toFloat(v.Value()); ok {
		return []float64{f}, true
	}

	switch arr := v.Value().(type) {
	case []float64:
		return append([]float64(nil), arr...), len(arr) > 0
	case []float32:
		return convert(arr), len(arr) > 0
	case []int16:
		return convert(arr), len(arr) > 0
	case []uint16:
		return convert(arr), len(arr) > 0
	case []int32:
		return convert(arr), len(arr) > 0
	case []uint32:
		return convert(arr), len(arr) > 0
	case []int64:
		return convert(arr), len(arr) > 0
	case []uint64:
		return convert(arr), len(arr) > 0
	default:
		return nil, false
	}
}

func convert[T float32 | int16 | uint16 | int32 | uint32 | int64 | uint64](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Collector = (*Collector)(nil)
