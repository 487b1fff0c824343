package config

import (
	"strings"
	"testing"
	"time"
)

const sampleConfig = `{
	// the pool controller on the garden VLAN
	"device": {
		"host": "192.168.3.17",
		"username": "admin",
		"password": "admin"
	},
	"pollIntervalMs": 30000,
	"metricsAddr": ":9120"
}`

func TestLoadBridgeConfig_Defaults(t *testing.T) {
	cfg, err := LoadBridgeConfigFromReader(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("load err=%v", err)
	}
	if cfg.Device.Port != 80 {
		t.Errorf("port default=%d, want 80", cfg.Device.Port)
	}
	if cfg.Device.Timeout() != 10*time.Second {
		t.Errorf("timeout default=%v", cfg.Device.Timeout())
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Errorf("poll interval=%v", cfg.PollInterval())
	}
	if cfg.Heartbeat() != 5*time.Minute {
		t.Errorf("heartbeat default=%v", cfg.Heartbeat())
	}
	if cfg.DiscoveryPrefix != "homeassistant" {
		t.Errorf("discovery prefix default=%q", cfg.DiscoveryPrefix)
	}
	if cfg.CommandBufferSize != 8 {
		t.Errorf("command buffer default=%d", cfg.CommandBufferSize)
	}
}

func TestLoadBridgeConfig_MissingHost(t *testing.T) {
	_, err := LoadBridgeConfigFromReader(strings.NewReader(`{"device": {}, "pollIntervalMs": 1000}`))
	if err == nil || !strings.Contains(err.Error(), "device.host") {
		t.Fatalf("expected host validation error, got %v", err)
	}
}

func TestLoadBridgeConfig_BadPollInterval(t *testing.T) {
	_, err := LoadBridgeConfigFromReader(strings.NewReader(`{"device": {"host": "h"}}`))
	if err == nil || !strings.Contains(err.Error(), "pollIntervalMs") {
		t.Fatalf("expected poll interval validation error, got %v", err)
	}
}

func TestLoadBridgeConfig_UnknownField(t *testing.T) {
	_, err := LoadBridgeConfigFromReader(strings.NewReader(`{"device": {"host": "h"}, "pollIntervalMs": 1000, "bogus": 1}`))
	if err == nil {
		t.Fatal("unknown fields must be rejected")
	}
}

func TestLoadBridgeConfig_CollectsAllErrors(t *testing.T) {
	_, err := LoadBridgeConfigFromReader(strings.NewReader(`{"device": {"port": -1}, "discoveryPrefix": "ha/#"}`))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"device.host", "device.port", "pollIntervalMs", "discoveryPrefix"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}
