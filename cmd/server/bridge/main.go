package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robertfraefel/procon-bridge/internal/config"
	"github.com/robertfraefel/procon-bridge/internal/logging"
	"github.com/robertfraefel/procon-bridge/internal/messaging"
	"github.com/robertfraefel/procon-bridge/internal/metrics"
	"github.com/robertfraefel/procon-bridge/internal/poller"
	"github.com/robertfraefel/procon-bridge/internal/procon"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {

	mqttURL := getenv("MQTT_URL", "tcp://localhost:1883")
	mqttUser := getenv("MQTT_USERNAME", "")
	mqttPass := getenv("MQTT_PASSWORD", "")
	path := getenv("BRIDGE_CONFIG_PATH", "/etc/procon-bridge/bridge-config.json")
	bridgeName := getenv("BRIDGE_NAME", "pool")
	topicPrefix := "procon/" + bridgeName

	logging.Init()
	cfg, err := config.LoadBridgeConfig(path)
	if err != nil {
		logging.Fatal("Bridge config error", "error", err)
	}

	logging.Info("Loaded config",
		"device", cfg.Device.Host,
		"pollMs", cfg.PollIntervalMs,
	)

	// Graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := messaging.NewBridgeBroker(messaging.BrokerConfig{
		BrokerURL:        mqttURL,
		ClientName:       bridgeName,
		TopicPrefix:      topicPrefix,
		Username:         mqttUser,
		Password:         mqttPass,
		ConnectTimeout:   10 * time.Second,
		PublishTimeout:   5 * time.Second,
		SubscribeTimeout: 5 * time.Second,
	}, cfg.DiscoveryPrefix, cfg.Heartbeat())

	if err := broker.Connect(ctx); err != nil {
		logging.Fatal("MQTT connect failed", "url", mqttURL, "error", err)
	}
	defer broker.Close(ctx)

	client := procon.NewClient(procon.ClientConfig{
		Host:     cfg.Device.Host,
		Port:     cfg.Device.Port,
		Username: cfg.Device.Username,
		Password: cfg.Device.Password,
		Timeout:  cfg.Device.Timeout(),
	})

	bridgePoller, err := poller.New(cfg, client, broker)
	if err != nil {
		logging.Fatal("poller init", "error", err)
	}
	if err := broker.StartCommandSubscriber(ctx, bridgePoller); err != nil {
		logging.Fatal("command subscribe failed", "error", err)
	}

	if cfg.MetricsAddr != "" {
		registry := metrics.NewRegistry()
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr, registry); err != nil {
				logging.Error("metrics server", "error", err)
			}
		}()
	}

	go bridgePoller.Start(ctx)

	// Wait for SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	logging.Info("Shutting down", "signal", s)

	// Give the poll loop a moment to exit cleanly (it honors ctx)
	cancel()
	time.Sleep(200 * time.Millisecond)
	logging.Info("bye")
}
