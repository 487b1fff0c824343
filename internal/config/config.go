package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

/* =========================
   Types
   ========================= */

type BridgeConfig struct {
	Device            DeviceConfig `json:"device"`
	PollIntervalMs    int          `json:"pollIntervalMs"`    // poll cadence
	HeartbeatInterval int          `json:"heartbeatInterval"` // seconds between republishes of unchanged state
	DiscoveryPrefix   string       `json:"discoveryPrefix"`   // Home Assistant discovery prefix
	MetricsAddr       string       `json:"metricsAddr"`       // empty disables the metrics endpoint
	CommandBufferSize int          `json:"commandBufferSize"` // pending relay commands
}

type DeviceConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"` // empty disables basic auth
	Password  string `json:"password"`
	TimeoutMs int    `json:"timeoutMs"`
}

/* =========================
   Helpers
   ========================= */

func (d DeviceConfig) Timeout() time.Duration { return time.Duration(d.TimeoutMs) * time.Millisecond }

func (c *BridgeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *BridgeConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

/* =========================
   Strict load + validate
   ========================= */

func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseBridgeConfig(raw)
}

func LoadBridgeConfigFromReader(r io.Reader) (*BridgeConfig, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parseBridgeConfig(raw)
}

func parseBridgeConfig(raw []byte) (*BridgeConfig, error) {
	clean := stripJSONComments(raw)

	dec := json.NewDecoder(strings.NewReader(string(clean)))
	dec.DisallowUnknownFields()

	var cfg BridgeConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *BridgeConfig) Validate() error {
	var errs multiErr

	/* Device */
	if strings.TrimSpace(c.Device.Host) == "" {
		errs.add("device.host is required")
	}
	if c.Device.Port < 0 || c.Device.Port > 65535 {
		errs.addf("device.port must be 0..65535, got %d", c.Device.Port)
	}
	if c.Device.Port == 0 {
		c.Device.Port = 80
	}
	if c.Device.TimeoutMs < 0 {
		errs.add("device.timeoutMs cannot be negative")
	}
	if c.Device.TimeoutMs == 0 {
		c.Device.TimeoutMs = 10000
	}

	/* Poll */
	if c.PollIntervalMs <= 0 {
		errs.add("pollIntervalMs must be > 0 (e.g., 30000)")
	}
	if c.HeartbeatInterval < 0 {
		errs.add("heartbeatInterval cannot be negative")
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 300 // default 5 min
	}

	/* Bridge */
	if c.DiscoveryPrefix == "" {
		c.DiscoveryPrefix = "homeassistant"
	}
	if strings.Contains(c.DiscoveryPrefix, "#") || strings.Contains(c.DiscoveryPrefix, "+") {
		errs.addf("discoveryPrefix %q cannot contain MQTT wildcards", c.DiscoveryPrefix)
	}
	if c.CommandBufferSize < 0 {
		errs.add("commandBufferSize cannot be negative")
	}
	if c.CommandBufferSize == 0 {
		c.CommandBufferSize = 8
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

/* =========================
   Comment stripping + utils
   ========================= */

var (
	lineComments  = regexp.MustCompile(`(?m)//[^\n\r]*`)
	blockComments = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

func stripJSONComments(in []byte) []byte {
	text := string(in)
	text = blockComments.ReplaceAllString(text, "")
	text = lineComments.ReplaceAllString(text, "")
	return []byte(text)
}

// small multi-error
type multiErr []string

func (m *multiErr) add(s string)            { *m = append(*m, s) }
func (m *multiErr) addf(f string, a ...any) { *m = append(*m, fmt.Sprintf(f, a...)) }
func (m multiErr) Error() string            { return "validation errors: " + strings.Join(m, "; ") }
