package scout

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingDashboardURL is returned when no control-plane URL is configured.
	ErrMissingDashboardURL = errors.New("dashboard_url is required")
	// ErrMissingAPIKey is returned when no agent API key is configured.
	ErrMissingAPIKey = errors.New("api_key is required")
)

// maxHeartbeatSleep caps the heartbeat cadence whatever the configured interval.
const maxHeartbeatSleep = 60 * time.Second

// Config holds the agent configuration.
type Config struct {
	DashboardURL           string          `mapstructure:"dashboard_url"`
	APIKey                 string          `mapstructure:"api_key"`
	AgentName              string          `mapstructure:"agent_name"`
	HeartbeatIntervalMs    int             `mapstructure:"heartbeat_interval_ms"`
	StatusCheckIntervalMs  int             `mapstructure:"status_check_interval_ms"`
	StatusFailureThreshold int             `mapstructure:"status_failure_threshold"`
	AutoScan               bool            `mapstructure:"auto_scan"`
	Log                    LogConfig       `mapstructure:"log"`
	Probe                  ProbeConfig     `mapstructure:"probe"`
	Discovery              DiscoveryConfig `mapstructure:"discovery"`
	StatusAddr             string          `mapstructure:"status_addr"`
	DataDir                string          `mapstructure:"data_dir"`
}

// LogConfig selects the log level and an optional log directory.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// ProbeConfig tunes the status-check probes.
type ProbeConfig struct {
	TimeoutMs   int `mapstructure:"timeout_ms"`
	PingCount   int `mapstructure:"ping_count"`
	Concurrency int `mapstructure:"concurrency"`
}

// DiscoveryConfig tunes subnet scans.
type DiscoveryConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	TimeoutMs     int    `mapstructure:"timeout_ms"`
	MaxHosts      int    `mapstructure:"max_hosts"`
	MDNS          bool   `mapstructure:"mdns"`
	SNMPCommunity string `mapstructure:"snmp_community"`
}

// Defaults returns every recognized key with its default value, in the
// dotted form viper expects.
func Defaults() map[string]any {
	return map[string]any{
		"dashboard_url":            "",
		"api_key":                  "",
		"agent_name":               "",
		"log.level":                "info",
		"log.dir":                  "",
		"heartbeat_interval_ms":    30000,
		"status_check_interval_ms": 60000,
		"status_failure_threshold": 3,
		"auto_scan":                true,
		"probe.timeout_ms":         3000,
		"probe.ping_count":         3,
		"probe.concurrency":        16,
		"discovery.concurrency":    64,
		"discovery.timeout_ms":     1000,
		"discovery.max_hosts":      1024,
		"discovery.mdns":           true,
		"discovery.snmp_community": "",
		"status_addr":              "127.0.0.1:9470",
		"data_dir":                 ".",
	}
}

// DefaultConfig returns the default agent configuration.
func DefaultConfig() *Config {
	return &Config{
		HeartbeatIntervalMs:    30000,
		StatusCheckIntervalMs:  60000,
		StatusFailureThreshold: 3,
		AutoScan:               true,
		Log:                    LogConfig{Level: "info"},
		Probe: ProbeConfig{
			TimeoutMs:   3000,
			PingCount:   3,
			Concurrency: 16,
		},
		Discovery: DiscoveryConfig{
			Concurrency: 64,
			TimeoutMs:   1000,
			MaxHosts:    1024,
			MDNS:        true,
		},
		StatusAddr: "127.0.0.1:9470",
		DataDir:    ".",
	}
}

// Validate checks required settings and numeric ranges.
func (c *Config) Validate() error {
	if c.DashboardURL == "" {
		return ErrMissingDashboardURL
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.HeartbeatIntervalMs <= 0 {
		return fmt.Errorf("heartbeat_interval_ms must be positive, got %d", c.HeartbeatIntervalMs)
	}
	if c.StatusCheckIntervalMs <= 0 {
		return fmt.Errorf("status_check_interval_ms must be positive, got %d", c.StatusCheckIntervalMs)
	}
	if c.StatusFailureThreshold < 1 {
		return fmt.Errorf("status_failure_threshold must be at least 1, got %d", c.StatusFailureThreshold)
	}
	return nil
}

// HeartbeatSleep is the pause between heartbeats: the configured interval,
// never more than a minute.
func (c *Config) HeartbeatSleep() time.Duration {
	return min(time.Duration(c.HeartbeatIntervalMs)*time.Millisecond, maxHeartbeatSleep)
}

// StatusCheckInterval is the pause between status-check cycles.
func (c *Config) StatusCheckInterval() time.Duration {
	return time.Duration(c.StatusCheckIntervalMs) * time.Millisecond
}

// ProbeTimeout is the per-probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutMs) * time.Millisecond
}

// DiscoveryTimeout is the per-host timeout during a subnet sweep.
func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.Discovery.TimeoutMs) * time.Millisecond
}
