// Package logging builds the zap logger shared by the runtime and the logr
// view of it handed to the diagnosis core.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logr's V(); zapr maps V(n) to zap level -n.
const (
	DEBUG = 1
	TRACE = 2
)

// Config selects level and encoding.
type Config struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"`
	Development bool   `yaml:"development"`
}

// ApplyDefaults fills info/json.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Encoding == "" {
		c.Encoding = "json"
	}
}

// Validate rejects unknown levels and encodings.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Encoding {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("log.encoding must be json or console, got %q", c.Encoding)
	}
}

// New builds a zap logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := zapcore.ParseLevel(cfg.Level)

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = cfg.Encoding
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// Logr wraps z for packages that log through logr.
func Logr(z *zap.Logger) logr.Logger {
	if z == nil {
		return logr.Discard()
	}
	return zapr.NewLogger(z)
}
