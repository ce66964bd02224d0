package mqtt

import (
	"errors"
	"fmt"
	"time"
)

// Config describes the broker session shared by the collector and the
// report publisher.
type Config struct {
	Broker            string        `yaml:"broker"`
	ClientID          string        `yaml:"client_id"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	IngestTopic       string        `yaml:"ingest_topic"`
	ReportTopicPrefix string        `yaml:"report_topic_prefix"`
	QoS               byte          `yaml:"qos"`
	KeepAlive         uint16        `yaml:"keep_alive"`
	ConnectRetries    int           `yaml:"connect_retries"`
	PublishTimeout    time.Duration `yaml:"publish_timeout"`
	PublishReports    bool          `yaml:"publish_reports"`
}

func (c *Config) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "electro-diag"
	}
	if c.IngestTopic == "" {
		c.IngestTopic = "motor/electro"
	}
	if c.ReportTopicPrefix == "" {
		c.ReportTopicPrefix = "motor"
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 30
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = 5
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker address is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// ReportTopic is the topic a motor's diagnosis summary is published on.
func (c *Config) ReportTopic(motorID string) string {
	if motorID == "" {
		motorID = "unknown"
	}
	return c.ReportTopicPrefix + "/" + motorID + "/diagnosis"
}
