package bridge

import (
	"context"
	"time"

	"github.com/robertfraefel/procon-bridge/internal/discovery"
	"github.com/robertfraefel/procon-bridge/internal/procon"
)

// DeviceInfo identifies the polled unit; shared by every published entity.
type DeviceInfo struct {
	Firmware  string `json:"firmware"`
	DeviceID  string `json:"deviceId"`
	ConfigURL string `json:"configUrl"`
}

// ChannelUpdate is one entity's rendered state for the current poll cycle.
type ChannelUpdate struct {
	Entity  discovery.Entity
	Payload string
}

// BridgeState is the full outcome of one successful poll cycle.
type BridgeState struct {
	Timestamp time.Time
	Device    DeviceInfo
	Channels  []ChannelUpdate
}

// RelayCommand asks the poller to switch one relay column to a mode.
type RelayCommand struct {
	Col  int
	Mode procon.Mode
}

type StatePublisher interface {
	PublishBridgeState(ctx context.Context, state BridgeState) error
	ClearPublishedState()
}

type CommandPusher interface {
	PushRelayCommand(cmd RelayCommand) bool
}
