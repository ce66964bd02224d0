package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/giicoo/Dorsia-Electro/internal/adapters/mqtt"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/opcua"
	"github.com/giicoo/Dorsia-Electro/internal/app/diagnosis"
	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/logging"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/classify"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/detect"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/park"
	"github.com/giicoo/Dorsia-Electro/internal/mcsa/spectral"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
	"gopkg.in/yaml.v3"
)

// Collector kinds.
const (
	CollectorOPCUA = "opcua"
	CollectorMQTT  = "mqtt"
)

type Config struct {
	Log       logging.Config                      `yaml:"log"`
	Machine   domain.MachineParameters            `yaml:"machine"`
	Motors    map[string]domain.MachineParameters `yaml:"motors"`
	Analysis  AnalysisConfig                      `yaml:"analysis"`
	Policy    ports.Policy                        `yaml:"policy"`
	Collector string                              `yaml:"collector"`
	OPCUA     opcua.Config                        `yaml:"opcua"`
	MQTT      mqtt.Config                         `yaml:"mqtt"`
	Timescale TimescaleConfig                     `yaml:"timescale"`
	Metrics   MetricsConfig                       `yaml:"metrics"`
	WAL       WALConfig                           `yaml:"wal"`
}

// AnalysisConfig is the diagnosis calibration. Zero values take the field
// defaults; ParkSamples and ExcludeSupplyPeak are pointers because their
// zero values are meaningful.
type AnalysisConfig struct {
	SampleRate        float64                        `yaml:"sample_rate"`
	FrameSize         int                            `yaml:"frame_size"`
	Window            int                            `yaml:"window"`
	ParkSamples       *int                           `yaml:"park_samples"`
	Workers           int                            `yaml:"workers"`
	SpectrumPhase     domain.Phase                   `yaml:"spectrum_phase"`
	Tolerance         float64                        `yaml:"tolerance"`
	Prominence        float64                        `yaml:"prominence"`
	ExcludeSupplyPeak *bool                          `yaml:"exclude_supply_peak"`
	Thresholds        map[domain.FailureMode]float64 `yaml:"thresholds"`
	Tiers             classify.Classifier            `yaml:"tiers"`
	Recommendation    RecommendationConfig           `yaml:"recommendation"`
}

type RecommendationConfig struct {
	Planned float64 `yaml:"planned"`
	Urgent  float64 `yaml:"urgent"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type WALConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultMachine is the 3 kW, 4-pole reference motor with an NSK 6205DDU
// drive-end bearing.
func DefaultMachine() domain.MachineParameters {
	return domain.MachineParameters{
		SupplyFrequency: 60,
		RPM:             1770,
		Slip:            0.0167,
		Poles:           4,
		Bearing: domain.BearingGeometry{
			Model:        "NSK6205DDU",
			Balls:        9,
			BallDiameter: 7.94e-3,
			CageDiameter: 39e-3,
		},
	}
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and no
// collector or sink configured.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	c.Log.ApplyDefaults()

	c.Machine = fillMachine(c.Machine, DefaultMachine())
	for id, m := range c.Motors {
		c.Motors[id] = fillMachine(m, c.Machine)
	}

	a := &c.Analysis
	if a.SampleRate == 0 {
		a.SampleRate = 25600
	}
	if a.FrameSize == 0 {
		a.FrameSize = 100_000
	}
	if a.Window == 0 {
		a.Window = spectral.DefaultWindow
	}
	if a.ParkSamples == nil {
		n := park.DefaultSamples
		a.ParkSamples = &n
	}
	if a.SpectrumPhase == "" {
		a.SpectrumPhase = domain.PhaseR
	}
	if a.Tolerance == 0 {
		a.Tolerance = detect.DefaultTolerance
	}
	if a.Prominence == 0 {
		a.Prominence = detect.DefaultProminence
	}
	if a.ExcludeSupplyPeak == nil {
		v := true
		a.ExcludeSupplyPeak = &v
	}
	if a.Thresholds == nil {
		a.Thresholds = make(map[domain.FailureMode]float64, len(domain.FailureModes))
	}
	for _, m := range domain.FailureModes {
		if _, ok := a.Thresholds[m]; !ok {
			a.Thresholds[m] = detect.DefaultThreshold
		}
	}
	def := classify.Default()
	if a.Tiers.Bearing == (classify.Tiers{}) {
		a.Tiers.Bearing = def.Bearing
	}
	if a.Tiers.Rotor == (classify.Tiers{}) {
		a.Tiers.Rotor = def.Rotor
	}
	if a.Tiers.Eccentricity == (classify.Tiers{}) {
		a.Tiers.Eccentricity = def.Eccentricity
	}
	if a.Tiers.Stator == (classify.StatorLimits{}) {
		a.Tiers.Stator = def.Stator
	}
	if a.Recommendation == (RecommendationConfig{}) {
		a.Recommendation = RecommendationConfig{Planned: 0.1, Urgent: 0.3}
	}

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
		c.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}

	if c.Collector == "" {
		switch {
		case c.OPCUA.Endpoint != "":
			c.Collector = CollectorOPCUA
		case c.MQTT.Broker != "":
			c.Collector = CollectorMQTT
		}
	}
	c.OPCUA.ApplyDefaults()
	c.MQTT.ApplyDefaults()

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "diagnosis_reports"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/wal"
	}
}

// fillMachine copies every unset field of m from def.
func fillMachine(m, def domain.MachineParameters) domain.MachineParameters {
	if m.SupplyFrequency == 0 {
		m.SupplyFrequency = def.SupplyFrequency
	}
	if m.RPM == 0 {
		m.RPM = def.RPM
	}
	if m.Slip == 0 {
		m.Slip = def.Slip
	}
	if m.Poles == 0 {
		m.Poles = def.Poles
	}
	if m.Bearing == (domain.BearingGeometry{}) {
		m.Bearing = def.Bearing
	}
	return m
}

func (c *Config) validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Machine.Validate(); err != nil {
		return fmt.Errorf("machine: %w", err)
	}
	for id, m := range c.Motors {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("motors.%s: %w", id, err)
		}
	}
	if !(c.Analysis.SampleRate > 0) {
		return domain.ConfigErrorf("analysis", "sample_rate must be > 0, got %v", c.Analysis.SampleRate)
	}
	if c.Analysis.FrameSize < c.Analysis.Window {
		return domain.ConfigErrorf("analysis", "frame_size %d is smaller than the spectral window %d", c.Analysis.FrameSize, c.Analysis.Window)
	}
	if n := c.Analysis.ParkSamples; n != nil && *n > c.Analysis.FrameSize {
		return domain.ConfigErrorf("analysis", "park_samples %d exceeds frame_size %d", *n, c.Analysis.FrameSize)
	}
	for m := range c.Analysis.Thresholds {
		if !knownMode(m) {
			return domain.ConfigErrorf("analysis", "unknown failure mode %q in thresholds", m)
		}
	}
	if err := c.Options().Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	switch c.Policy.OnQueueFull {
	case "block", "drop", "reject":
	default:
		return fmt.Errorf("policy.on_queue_full must be block, drop or reject, got %q", c.Policy.OnQueueFull)
	}
	switch c.Policy.OnWALFull {
	case "block", "drop":
	default:
		return fmt.Errorf("policy.on_wal_full must be block or drop, got %q", c.Policy.OnWALFull)
	}

	switch c.Collector {
	case "":
	case CollectorOPCUA:
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	case CollectorMQTT:
		if err := c.MQTT.Validate(); err != nil {
			return fmt.Errorf("mqtt config: %w", err)
		}
	default:
		return fmt.Errorf("collector must be %s or %s, got %q", CollectorOPCUA, CollectorMQTT, c.Collector)
	}
	if c.MQTT.PublishReports {
		if err := c.MQTT.Validate(); err != nil {
			return fmt.Errorf("mqtt config: %w", err)
		}
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	return nil
}

// ValidateRuntime adds the checks that only the long-running edge service
// needs: a collector and at least one report sink.
func (c *Config) ValidateRuntime() error {
	if c.Collector == "" {
		return errors.New("collector is required: configure opcua.endpoint or mqtt.broker")
	}
	if c.Timescale.ConnString == "" && !c.MQTT.PublishReports {
		return errors.New("no report sink: set timescale.conn_string or mqtt.publish_reports")
	}
	return nil
}

// Options converts the analysis section into diagnoser options.
func (c *Config) Options() diagnosis.Options {
	a := c.Analysis
	o := diagnosis.DefaultOptions()
	o.Window = a.Window
	if a.ParkSamples != nil {
		o.ParkSamples = *a.ParkSamples
	}
	o.Workers = a.Workers
	o.SpectrumPhase = a.SpectrumPhase
	o.Detector.Tolerance = a.Tolerance
	o.Detector.Prominence = a.Prominence
	if a.ExcludeSupplyPeak != nil {
		o.Detector.ExcludeSupplyPeak = *a.ExcludeSupplyPeak
	}
	o.Thresholds = make(map[domain.FailureMode]float64, len(a.Thresholds))
	for m, th := range a.Thresholds {
		o.Thresholds[m] = th
	}
	o.Classifier = a.Tiers
	o.Recommend = diagnosis.RecommendationLimits{Planned: a.Recommendation.Planned, Urgent: a.Recommendation.Urgent}
	return o
}

func knownMode(m domain.FailureMode) bool {
	for _, k := range domain.FailureModes {
		if k == m {
			return true
		}
	}
	return false
}
