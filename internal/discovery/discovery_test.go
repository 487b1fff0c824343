package discovery

import (
	"testing"

	"github.com/robertfraefel/procon-bridge/internal/procon"
)

func testSnapshot() *procon.Snapshot {
	s := &procon.Snapshot{
		SysInfo: []string{"SYSINFO", "1.7.6", "30217075"},
		Names:   make([]string, 42),
		Units:   make([]string, 42),
		Offsets: make([]float64, 42),
		Factors: make([]float64, 42),
		Raws:    make([]int, 42),
		Values:  make([]float64, 42),
	}
	for i := range s.Names {
		s.Names[i] = "n.a."
		s.Units[i] = "--"
		s.Factors[i] = 1
	}
	set := func(col int, name, unit string, raw int, value float64) {
		s.Names[col], s.Units[col], s.Raws[col], s.Values[col] = name, unit, raw, value
	}
	set(0, "Zeit", "h", 2333, 2333)
	set(7, "pH", "pH", 735, 7.35)
	set(8, "Pool", "C", 90, 22.5)
	set(16, "Filterpumpe", "--", 3, 3)
	set(25, "TASTER2", "--", 0, 0)
	set(27, "Poolabdeckung", "--", 1, 1)
	set(39, "Verbrauch Chlor", "ml", 2150, 2150)
	return s
}

func TestEntities_Classification(t *testing.T) {
	byCol := map[int]Entity{}
	for _, e := range Entities(testSnapshot()) {
		byCol[e.Col] = e
	}

	if _, ok := byCol[0]; ok {
		t.Error("timer column must not become an entity")
	}
	if _, ok := byCol[9]; ok {
		t.Error("n.a. column must not become an entity")
	}

	if e := byCol[16]; e.Component != ComponentSelect {
		t.Errorf("relay col 16: component=%q", e.Component)
	}
	if e := byCol[25]; e.Component != ComponentBinarySensor {
		t.Errorf("digital input col 25: component=%q", e.Component)
	}
	if e := byCol[8]; e.Component != ComponentSensor || e.Unit != "°C" ||
		e.DeviceClass != "temperature" || e.StateClass != "measurement" || e.Precision != 1 {
		t.Errorf("temperature col 8: %+v", e)
	}
	if e := byCol[7]; e.Unit != "pH" || e.Precision != 2 {
		t.Errorf("pH col 7: %+v", e)
	}
	if e := byCol[39]; e.Unit != "mL" || e.StateClass != "total_increasing" {
		t.Errorf("consumption col 39: %+v", e)
	}
}

func TestStatePayload(t *testing.T) {
	s := testSnapshot()
	byCol := map[int]Entity{}
	for _, e := range Entities(s) {
		byCol[e.Col] = e
	}

	if got := StatePayload(s, byCol[16]); got != "on" {
		t.Errorf("relay raw=3 payload=%q, want on", got)
	}
	if got := StatePayload(s, byCol[25]); got != "OFF" {
		t.Errorf("taster raw=0 payload=%q, want OFF", got)
	}
	if got := StatePayload(s, byCol[27]); got != "ON" {
		t.Errorf("cover raw=1 payload=%q, want ON", got)
	}
	if got := StatePayload(s, byCol[8]); got != "22.5" {
		t.Errorf("temperature payload=%q, want 22.5", got)
	}
}

func TestConfig_Select(t *testing.T) {
	e := Entity{Col: 16, Component: ComponentSelect, Name: "Filterpumpe", Precision: -1}
	dev := Device{ID: "30217075", Name: "ProCon.IP Pool Controller", Firmware: "1.7.6", ConfigURL: "http://192.168.3.17:80"}

	topic := e.ConfigTopic("homeassistant", dev.ID)
	if topic != "homeassistant/select/procon_30217075/channel_16/config" {
		t.Errorf("config topic=%q", topic)
	}

	cfg := e.Config(dev, "procon/pool/channel/16/state", "procon/pool/channel/16/set", "procon/pool/status")
	if cfg["command_topic"] != "procon/pool/channel/16/set" {
		t.Errorf("command_topic=%v", cfg["command_topic"])
	}
	opts, ok := cfg["options"].([]string)
	if !ok || len(opts) != 3 || opts[0] != "auto" {
		t.Errorf("options=%v", cfg["options"])
	}
	if cfg["unique_id"] != "procon_30217075_channel_16" {
		t.Errorf("unique_id=%v", cfg["unique_id"])
	}
	dev2, ok := cfg["device"].(map[string]any)
	if !ok || dev2["sw_version"] != "1.7.6" {
		t.Errorf("device block=%v", cfg["device"])
	}
}

func TestConfig_SensorOptionalFields(t *testing.T) {
	e := Entity{Col: 8, Component: ComponentSensor, Name: "Pool", Unit: "°C",
		DeviceClass: "temperature", StateClass: "measurement", Precision: 1}
	cfg := e.Config(Device{ID: "x"}, "st", "", "avty")
	if cfg["unit_of_measurement"] != "°C" || cfg["device_class"] != "temperature" {
		t.Errorf("sensor cfg=%v", cfg)
	}
	if cfg["suggested_display_precision"] != 1 {
		t.Errorf("precision=%v", cfg["suggested_display_precision"])
	}
	if _, ok := cfg["command_topic"]; ok {
		t.Error("sensor must not carry a command topic")
	}

	bare := Entity{Col: 5, Component: ComponentSensor, Name: "ADC", Precision: -1}
	cfg = bare.Config(Device{ID: "x"}, "st", "", "avty")
	for _, key := range []string{"unit_of_measurement", "device_class", "state_class", "suggested_display_precision"} {
		if _, ok := cfg[key]; ok {
			t.Errorf("unset field %q must be omitted", key)
		}
	}
}
