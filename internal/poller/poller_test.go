package poller

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/robertfraefel/procon-bridge/internal/bridge"
	"github.com/robertfraefel/procon-bridge/internal/config"
	"github.com/robertfraefel/procon-bridge/internal/procon"
)

func testBody() string {
	names := make([]string, 42)
	units := make([]string, 42)
	offsets := make([]string, 42)
	factors := make([]string, 42)
	raws := make([]string, 42)
	for i := 0; i < 42; i++ {
		names[i], units[i], offsets[i], factors[i], raws[i] = "n.a.", "--", "0", "1", "0"
	}
	names[8], units[8], factors[8], raws[8] = "Pool", "C", "0.25", "90"
	names[16], raws[16] = "Filterpumpe", "1"
	names[17], raws[17] = "Heizung", "3"

	return strings.Join([]string{
		"SYSINFO,1.7.6,30217075,0,0",
		strings.Join(names, ","),
		strings.Join(units, ","),
		strings.Join(offsets, ","),
		strings.Join(factors, ","),
		strings.Join(raws, ","),
	}, "\n")
}

type fakeClient struct {
	body     string
	fetchErr error
	writeErr error
	writes   [][2]uint16
	fetches  int
}

func (f *fakeClient) FetchState(ctx context.Context) (*procon.Snapshot, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return procon.ParseSnapshot(f.body)
}

func (f *fakeClient) WriteRelays(ctx context.Context, manualBits, onBits uint16) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, [2]uint16{manualBits, onBits})
	return nil
}

func (f *fakeClient) BaseURL() string { return "http://device.test:80" }

type fakePublisher struct {
	states []bridge.BridgeState
	err    error
}

func (f *fakePublisher) PublishBridgeState(ctx context.Context, st bridge.BridgeState) error {
	if f.err != nil {
		return f.err
	}
	f.states = append(f.states, st)
	return nil
}

func (f *fakePublisher) ClearPublishedState() {}

func testConfig() *config.BridgeConfig {
	cfg := &config.BridgeConfig{
		Device:         config.DeviceConfig{Host: "device.test"},
		PollIntervalMs: 1000,
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func TestPollOnce_Publishes(t *testing.T) {
	client := &fakeClient{body: testBody()}
	pub := &fakePublisher{}
	p, err := New(testConfig(), client, pub)
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	p.pollOnce(context.Background())

	if len(pub.states) != 1 {
		t.Fatalf("expected 1 published state, got %d", len(pub.states))
	}
	st := pub.states[0]
	if st.Device.DeviceID != "30217075" || st.Device.Firmware != "1.7.6" {
		t.Errorf("device info=%+v", st.Device)
	}
	if st.Device.ConfigURL != "http://device.test:80" {
		t.Errorf("config url=%q", st.Device.ConfigURL)
	}
	// active channels: Pool sensor + two relay selects
	if len(st.Channels) != 3 {
		t.Fatalf("expected 3 channels, got %d: %+v", len(st.Channels), st.Channels)
	}
	byCol := map[int]bridge.ChannelUpdate{}
	for _, ch := range st.Channels {
		byCol[ch.Entity.Col] = ch
	}
	if byCol[8].Payload != "22.5" {
		t.Errorf("pool payload=%q", byCol[8].Payload)
	}
	if byCol[16].Payload != "auto" || byCol[17].Payload != "on" {
		t.Errorf("relay payloads: %q, %q", byCol[16].Payload, byCol[17].Payload)
	}
}

func TestPollOnce_FetchFailureKeepsSnapshot(t *testing.T) {
	client := &fakeClient{body: testBody()}
	pub := &fakePublisher{}
	p, _ := New(testConfig(), client, pub)

	p.pollOnce(context.Background())
	client.fetchErr = errors.New("connection refused")
	p.pollOnce(context.Background())

	if len(pub.states) != 1 {
		t.Fatalf("failed poll must not publish, got %d states", len(pub.states))
	}
	if p.lastSnap == nil {
		t.Fatal("previous snapshot must survive a failed poll")
	}
}

func TestPollOnce_DeviceIDFallback(t *testing.T) {
	body := testBody()
	lines := strings.Split(body, "\n")
	lines[0] = "SYSINFO,1.7.6"
	client := &fakeClient{body: strings.Join(lines, "\n")}
	pub := &fakePublisher{}
	p, _ := New(testConfig(), client, pub)

	p.pollOnce(context.Background())

	if pub.states[0].Device.DeviceID != "device.test:80" {
		t.Errorf("device id fallback=%q", pub.states[0].Device.DeviceID)
	}
}

func TestHandleCommand_WritesFullPattern(t *testing.T) {
	client := &fakeClient{body: testBody()}
	pub := &fakePublisher{}
	p, _ := New(testConfig(), client, pub)
	p.pollOnce(context.Background())

	// current pattern: col16 auto with the on bit mirrored from raw=1,
	// col17 manual on, everything else auto. Turning col18 (bit2) on sets
	// both of its bits.
	p.handleCommand(context.Background(), bridge.RelayCommand{Col: 18, Mode: procon.ModeOn})

	if len(client.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(client.writes))
	}
	manual, on := client.writes[0][0], client.writes[0][1]
	if manual != 0b00000110 {
		t.Errorf("manualBits=%08b, want 00000110", manual)
	}
	if on != 0b00000111 {
		t.Errorf("onBits=%08b, want 00000111", on)
	}

	// a successful write queues an immediate re-poll
	select {
	case <-p.pollCh:
	default:
		t.Error("expected a queued poll signal after the relay write")
	}
}

func TestHandleCommand_NoSnapshot(t *testing.T) {
	client := &fakeClient{body: testBody()}
	p, _ := New(testConfig(), client, &fakePublisher{})

	p.handleCommand(context.Background(), bridge.RelayCommand{Col: 16, Mode: procon.ModeOn})
	if len(client.writes) != 0 {
		t.Fatal("command without a snapshot must not write")
	}
}

func TestHandleCommand_InvalidColumn(t *testing.T) {
	client := &fakeClient{body: testBody()}
	p, _ := New(testConfig(), client, &fakePublisher{})
	p.pollOnce(context.Background())

	p.handleCommand(context.Background(), bridge.RelayCommand{Col: 5, Mode: procon.ModeOn})
	if len(client.writes) != 0 {
		t.Fatal("non-relay column must not write")
	}
}

func TestHandleCommand_WriteFailure(t *testing.T) {
	client := &fakeClient{body: testBody()}
	p, _ := New(testConfig(), client, &fakePublisher{})
	p.pollOnce(context.Background())

	client.writeErr = errors.New("HTTP 401")
	p.handleCommand(context.Background(), bridge.RelayCommand{Col: 16, Mode: procon.ModeOff})

	select {
	case <-p.pollCh:
		t.Error("failed write must not queue a re-poll")
	default:
	}
}

func TestPushRelayCommand_BufferFull(t *testing.T) {
	cfg := testConfig()
	cfg.CommandBufferSize = 1
	p, _ := New(cfg, &fakeClient{body: testBody()}, &fakePublisher{})

	if !p.PushRelayCommand(bridge.RelayCommand{Col: 16, Mode: procon.ModeOn}) {
		t.Fatal("first push must succeed")
	}
	if p.PushRelayCommand(bridge.RelayCommand{Col: 17, Mode: procon.ModeOn}) {
		t.Fatal("second push must be rejected, buffer is full")
	}
}
