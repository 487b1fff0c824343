package messaging

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/robertfraefel/procon-bridge/internal/bridge"
	"github.com/robertfraefel/procon-bridge/internal/discovery"
	"github.com/robertfraefel/procon-bridge/internal/logging"
	"github.com/robertfraefel/procon-bridge/internal/procon"
	"github.com/robertfraefel/procon-bridge/internal/state"
)

const (
	deviceName = "ProCon.IP Pool Controller"

	payloadOnline  = "online"
	payloadOffline = "offline"

	// Home Assistant announces its own restarts here; we clear the published
	// cache so discovery configs and states are resent on the next cycle.
	haStatusTopic = "homeassistant/status"
)

// BridgeBroker is the MQTT face of the bridge: it publishes entity state and
// discovery configs, and feeds relay commands back to the poller.
type BridgeBroker interface {
	Broker
	bridge.StatePublisher
	AvailabilityTopic() string
	StartCommandSubscriber(ctx context.Context, pusher bridge.CommandPusher) error
}

type bridgeBroker struct {
	*MsgBroker
	discoveryPrefix   string
	heartbeatInterval time.Duration
	published         state.PublishedStore
}

// NewBridgeBroker wires a MsgBroker with an availability last-will and an
// on-connect "online" announcement. heartbeatInterval <= 0 disables periodic
// republishing of unchanged payloads.
func NewBridgeBroker(cfg BrokerConfig, discoveryPrefix string, heartbeatInterval time.Duration) BridgeBroker {
	b := &bridgeBroker{
		discoveryPrefix:   discoveryPrefix,
		heartbeatInterval: heartbeatInterval,
		published:         state.NewPublishedStore(),
	}

	availability := strings.Join([]string{cfg.TopicPrefix, "status"}, "/")
	cfg.WillTopic = availability
	cfg.WillPayload = payloadOffline
	b.MsgBroker = NewMsgBroker(cfg)

	b.AddOnConnectPublisher("availability", func() (PublishRequest, error) {
		return PublishRequest{
			Topic:        availability,
			Qos:          AtLeastOnce,
			Retain:       true,
			PayloadBytes: []byte(payloadOnline),
		}, nil
	})
	return b
}

func (b *bridgeBroker) AvailabilityTopic() string { return b.Topic("status") }

func (b *bridgeBroker) stateTopic(col int) string {
	return b.Topic("channel", strconv.Itoa(col), "state")
}

func (b *bridgeBroker) commandTopic(col int) string {
	return b.Topic("channel", strconv.Itoa(col), "set")
}

// ClearPublishedState forces every topic to be resent on the next cycle.
func (b *bridgeBroker) ClearPublishedState() { b.published.Clear() }

// PublishBridgeState pushes one poll cycle out: a retained discovery config
// and a retained state payload per entity, both skipped while unchanged and
// inside the heartbeat window.
func (b *bridgeBroker) PublishBridgeState(ctx context.Context, st bridge.BridgeState) error {
	dev := discovery.Device{
		ID:        st.Device.DeviceID,
		Name:      deviceName,
		Firmware:  st.Device.Firmware,
		ConfigURL: st.Device.ConfigURL,
	}

	var firstErr error
	for _, ch := range st.Channels {
		cfgTopic := ch.Entity.ConfigTopic(b.discoveryPrefix, dev.ID)
		cfg := ch.Entity.Config(dev, b.stateTopic(ch.Entity.Col), b.commandTopic(ch.Entity.Col), b.AvailabilityTopic())
		cfgPayload, err := json.Marshal(cfg)
		if err != nil {
			logging.Error("discovery config marshal", "topic", cfgTopic, "error", err)
			continue
		}
		if err := b.publishIfDue(ctx, cfgTopic, string(cfgPayload), AtLeastOnce); err != nil && firstErr == nil {
			firstErr = err
		}

		if err := b.publishIfDue(ctx, b.stateTopic(ch.Entity.Col), ch.Payload, FireAndForget); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *bridgeBroker) publishIfDue(ctx context.Context, topic, payload string, qos QoS) error {
	isChanged := b.published.HasChanged(topic, payload)
	needsHeartbeat := false
	if !isChanged && b.heartbeatInterval > 0 {
		_, lastSent, hasPrev := b.published.GetLast(topic)
		needsHeartbeat = !hasPrev || time.Since(lastSent) > b.heartbeatInterval
	}
	if !isChanged && !needsHeartbeat {
		return nil
	}

	logging.Debug("Publishing", "topic", topic, "changed", isChanged)
	err := b.Publish(ctx, topic, qos, true, []byte(payload))
	if err == nil {
		b.published.Update(topic, payload)
	}
	return err
}

// StartCommandSubscriber listens for relay set commands
// (<prefix>/channel/<col>/set with payload auto|on|off) and for Home
// Assistant birth messages.
func (b *bridgeBroker) StartCommandSubscriber(ctx context.Context, pusher bridge.CommandPusher) error {
	_, err := b.Subscribe(ctx, b.Topic("channel", "+", "set"), AtLeastOnce, func(ctx context.Context, topic string, payload []byte) {
		b.onCommand(topic, payload, pusher)
	})
	if err != nil {
		return err
	}

	_, err = b.Subscribe(ctx, haStatusTopic, AtMostOnce, func(ctx context.Context, topic string, payload []byte) {
		if string(payload) == payloadOnline {
			logging.Info("Home Assistant restarted, resending discovery and state")
			b.ClearPublishedState()
		}
	})
	return err
}

func (b *bridgeBroker) onCommand(topic string, payload []byte, pusher bridge.CommandPusher) {
	logging.Debug("Received command", "topic", topic, "payload", string(payload))

	// <prefix...>/channel/<col>/set
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-1] != "set" {
		logging.Warn("command topic malformed", "topic", topic)
		return
	}
	col, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		logging.Warn("command topic malformed", "topic", topic, "error", err)
		return
	}

	mode, err := procon.ParseMode(strings.TrimSpace(string(payload)))
	if err != nil {
		logging.Warn("command payload rejected", "topic", topic, "payload", string(payload), "error", err)
		return
	}

	if ok := pusher.PushRelayCommand(bridge.RelayCommand{Col: col, Mode: mode}); !ok {
		logging.Warn("command buffer full, dropping command", "col", col, "mode", mode)
	}
}
