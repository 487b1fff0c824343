package poller

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robertfraefel/procon-bridge/internal/bridge"
	"github.com/robertfraefel/procon-bridge/internal/config"
	"github.com/robertfraefel/procon-bridge/internal/discovery"
	"github.com/robertfraefel/procon-bridge/internal/logging"
	"github.com/robertfraefel/procon-bridge/internal/metrics"
	"github.com/robertfraefel/procon-bridge/internal/procon"
	"github.com/robertfraefel/procon-bridge/internal/util"
)

type ZeroSignal struct{}

// Zero is the canonical value to send on signal channels.
var Zero ZeroSignal

// DeviceClient abstracts the device HTTP operations the poller needs.
type DeviceClient interface {
	FetchState(ctx context.Context) (*procon.Snapshot, error)
	WriteRelays(ctx context.Context, manualBits, onBits uint16) error
	BaseURL() string
}

// BridgePoller drives one device: fetch-decode-publish on a fixed cadence,
// with relay commands interleaved on the same loop. Decode and encode run on
// a single goroutine; the most recent snapshot is the only state carried
// between cycles.
type BridgePoller struct {
	PollPeriod time.Duration

	cfg       *config.BridgeConfig
	client    DeviceClient
	publisher bridge.StatePublisher

	cmdCh  chan bridge.RelayCommand
	pollCh chan ZeroSignal

	lastSnap *procon.Snapshot // owned by the poll loop
}

func New(cfg *config.BridgeConfig, client DeviceClient, publisher bridge.StatePublisher) (*BridgePoller, error) {
	if cfg.PollIntervalMs <= 0 {
		return nil, fmt.Errorf("poller: poll interval must be > 0")
	}
	if client == nil || publisher == nil {
		return nil, fmt.Errorf("poller: client and publisher are required")
	}
	return &BridgePoller{
		PollPeriod: cfg.PollInterval(),
		cfg:        cfg,
		client:     client,
		publisher:  publisher,
		cmdCh:      make(chan bridge.RelayCommand, cfg.CommandBufferSize),
		pollCh:     make(chan ZeroSignal, 1),
	}, nil
}

// Start runs the poll loop until ctx is cancelled. An immediate first poll
// is queued so entities appear without waiting a full period.
func (p *BridgePoller) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(p.PollPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				p.requestPoll()
			}
		}
	}()

	logging.Info("Poller started", "device", p.client.BaseURL(), "poll", p.PollPeriod.Milliseconds())
	p.requestPoll()
	p.loop(ctx)
}

func (p *BridgePoller) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logging.Info("Poller stopped")
			return
		case cmd := <-p.cmdCh:
			p.handleCommand(ctx, cmd)
		case <-p.pollCh:
			p.pollOnce(ctx)
		}
	}
}

// requestPoll queues a poll signal; drops it if one is already pending.
func (p *BridgePoller) requestPoll() {
	select {
	case p.pollCh <- Zero:
	default:
	}
}

// PushRelayCommand hands a relay command to the poll loop without blocking.
func (p *BridgePoller) PushRelayCommand(cmd bridge.RelayCommand) bool {
	if p.cmdCh == nil {
		return false
	}
	select {
	case p.cmdCh <- cmd:
		return true
	default:
		return false
	}
}

func (p *BridgePoller) pollOnce(ctx context.Context) {
	start := time.Now()

	snap, err := p.client.FetchState(ctx)
	if err != nil {
		metrics.FetchFailure.Set(1)
		logging.Warn("Poll failed", "device", p.client.BaseURL(), "error", err)
		// keep the previous snapshot; the host decides how stale is too stale
		return
	}

	p.lastSnap = snap
	metrics.FetchFailure.Set(0)
	metrics.LastRefreshTimestamp.SetToCurrentTime()

	st := p.buildState(snap)
	p.observe(snap, st)

	if err := p.publisher.PublishBridgeState(ctx, st); err != nil {
		logging.Warn("Failed to publish state", "error", err)
	}
	metrics.PollDuration.Observe(time.Since(start).Seconds())
}

func (p *BridgePoller) buildState(snap *procon.Snapshot) bridge.BridgeState {
	deviceID := snap.DeviceID()
	if deviceID == "" {
		// very old firmware omits the id; host:port keeps entities stable
		deviceID = fmt.Sprintf("%s:%d", p.cfg.Device.Host, p.cfg.Device.Port)
	}

	entities := discovery.Entities(snap)
	channels := make([]bridge.ChannelUpdate, 0, len(entities))
	for _, e := range entities {
		channels = append(channels, bridge.ChannelUpdate{
			Entity:  e,
			Payload: discovery.StatePayload(snap, e),
		})
	}

	return bridge.BridgeState{
		Timestamp: time.Now(),
		Device: bridge.DeviceInfo{
			Firmware:  snap.Firmware(),
			DeviceID:  deviceID,
			ConfigURL: p.client.BaseURL(),
		},
		Channels: channels,
	}
}

func (p *BridgePoller) observe(snap *procon.Snapshot, st bridge.BridgeState) {
	for _, ch := range st.Channels {
		col := strconv.Itoa(ch.Entity.Col)
		switch ch.Entity.Component {
		case discovery.ComponentSelect:
			var v float64
			switch snap.RelayMode(ch.Entity.Col) {
			case procon.ModeOff:
				v = 1
			case procon.ModeOn:
				v = 2
			}
			metrics.RelayMode.WithLabelValues(col, ch.Entity.Name).Set(v)
		case discovery.ComponentBinarySensor:
			var v float64
			if snap.Raw(ch.Entity.Col) != 0 {
				v = 1
			}
			metrics.ChannelValue.WithLabelValues(col, ch.Entity.Name, "").Set(v)
		default:
			if ch.Entity.Col < len(snap.Values) {
				metrics.ChannelValue.WithLabelValues(col, ch.Entity.Name, ch.Entity.Unit).Set(snap.Values[ch.Entity.Col])
			}
		}
	}
}

// handleCommand switches one relay. The device only accepts the complete
// relay pattern, so the current snapshot is re-encoded, the two target bits
// flipped, and the whole thing posted back (read-modify-write).
func (p *BridgePoller) handleCommand(ctx context.Context, cmd bridge.RelayCommand) {
	if p.lastSnap == nil {
		logging.Warn("No snapshot yet, dropping relay command", "col", cmd.Col, "mode", cmd.Mode)
		return
	}

	bitIndex, err := procon.RelayBitIndex(cmd.Col)
	if err != nil {
		logging.Warn("Relay command rejected", "col", cmd.Col, "error", err)
		return
	}

	manual, on := procon.ComputeWritePattern(p.lastSnap)
	manual, on, err = procon.ApplyMode(manual, on, bitIndex, cmd.Mode)
	if err != nil {
		logging.Warn("Relay command rejected", "col", cmd.Col, "mode", cmd.Mode, "error", err)
		return
	}

	logging.Debug("Writing relay pattern",
		"col", cmd.Col, "mode", cmd.Mode,
		"manual", util.BitPatternString(manual, 16),
		"on", util.BitPatternString(on, 16),
	)

	if err := p.client.WriteRelays(ctx, manual, on); err != nil {
		logging.Error("Relay write failed", "col", cmd.Col, "mode", cmd.Mode, "error", err)
		return
	}
	metrics.RelayWrites.Inc()

	// re-poll right away so entities reflect the change without waiting
	p.requestPoll()
}
