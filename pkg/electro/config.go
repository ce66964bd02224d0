package electro

import (
	"github.com/giicoo/Dorsia-Electro/internal/adapters/mqtt"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/opcua"
	"github.com/giicoo/Dorsia-Electro/internal/app/config"
	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/logging"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls WAL/queue thresholds.
	Policy = ports.Policy
	// AnalysisConfig is the diagnosis calibration.
	AnalysisConfig = config.AnalysisConfig
	// MachineParameters is the nameplate and bearing data of a motor.
	MachineParameters = domain.MachineParameters
	// BearingGeometry describes the drive-end bearing.
	BearingGeometry = domain.BearingGeometry
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps a tag to a motor phase.
	OPCUANodeConfig = opcua.NodeConfig
	// MQTTConfig holds the broker session and topics.
	MQTTConfig = mqtt.Config
	// TimescaleConfig configures the report table.
	TimescaleConfig = config.TimescaleConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// WALConfig configures on-disk durability.
	WALConfig = config.WALConfig
	// LogConfig selects the log level and encoding.
	LogConfig = logging.Config
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig decodes and validates an in-memory YAML document.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// DefaultConfig returns a fully defaulted configuration without collector
// or sink.
func DefaultConfig() *Config {
	return config.Default()
}

// DefaultMachine is the reference motor used when no machine is configured.
func DefaultMachine() MachineParameters {
	return config.DefaultMachine()
}
