package messaging

import (
	"testing"
	"time"

	"github.com/robertfraefel/procon-bridge/internal/bridge"
	"github.com/robertfraefel/procon-bridge/internal/procon"
)

type fakePusher struct {
	cmds []bridge.RelayCommand
	full bool
}

func (f *fakePusher) PushRelayCommand(cmd bridge.RelayCommand) bool {
	if f.full {
		return false
	}
	f.cmds = append(f.cmds, cmd)
	return true
}

func newTestBroker() *bridgeBroker {
	b := NewBridgeBroker(BrokerConfig{
		BrokerURL:   "tcp://localhost:1883",
		ClientName:  "pool",
		TopicPrefix: "procon/pool",
	}, "homeassistant", 5*time.Minute)
	return b.(*bridgeBroker)
}

func TestBridgeBroker_Topics(t *testing.T) {
	b := newTestBroker()
	if got := b.AvailabilityTopic(); got != "procon/pool/status" {
		t.Errorf("availability topic=%q", got)
	}
	if got := b.stateTopic(16); got != "procon/pool/channel/16/state" {
		t.Errorf("state topic=%q", got)
	}
	if got := b.commandTopic(16); got != "procon/pool/channel/16/set" {
		t.Errorf("command topic=%q", got)
	}
}

func TestBridgeBroker_OnCommand(t *testing.T) {
	b := newTestBroker()
	pusher := &fakePusher{}

	b.onCommand("procon/pool/channel/17/set", []byte("on"), pusher)
	if len(pusher.cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(pusher.cmds))
	}
	if cmd := pusher.cmds[0]; cmd.Col != 17 || cmd.Mode != procon.ModeOn {
		t.Errorf("cmd=%+v", cmd)
	}

	// trailing whitespace from sloppy publishers is tolerated
	b.onCommand("procon/pool/channel/16/set", []byte("auto\n"), pusher)
	if len(pusher.cmds) != 2 || pusher.cmds[1].Mode != procon.ModeAuto {
		t.Fatalf("cmds=%+v", pusher.cmds)
	}
}

func TestBridgeBroker_OnCommand_Rejects(t *testing.T) {
	b := newTestBroker()
	pusher := &fakePusher{}

	b.onCommand("procon/pool/channel/17/set", []byte("toggle"), pusher)
	b.onCommand("procon/pool/channel/x/set", []byte("on"), pusher)
	b.onCommand("procon/pool/status", []byte("on"), pusher)

	if len(pusher.cmds) != 0 {
		t.Fatalf("invalid commands must be dropped, got %+v", pusher.cmds)
	}
}

func TestBridgeBroker_OnCommand_BufferFull(t *testing.T) {
	b := newTestBroker()
	// must not panic or block when the poller's buffer rejects the push
	b.onCommand("procon/pool/channel/17/set", []byte("off"), &fakePusher{full: true})
}
