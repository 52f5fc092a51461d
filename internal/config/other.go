package config

import "fmt"

type AgentConfig struct {
	Host string
	Port int
}

func (c *AgentConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("agent port %d is out of range", c.Port)
	}
	return nil
}

type LoggingConfig struct {
	// File enables a rotated log file next to stdout when set
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type SentryConfig struct {
	Enabled     bool
	Dsn         RedactedString
	Environment string
	SampleRate  float64
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type MonitoringConfig struct {
	Sentry     SentryConfig
	Prometheus PrometheusConfig
}
