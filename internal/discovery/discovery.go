// Package discovery classifies snapshot columns into Home Assistant
// entities and renders their MQTT discovery configs and state payloads.
package discovery

import (
	"fmt"
	"strconv"

	"github.com/robertfraefel/procon-bridge/internal/procon"
	"github.com/robertfraefel/procon-bridge/internal/util"
)

const (
	ComponentSensor       = "sensor"
	ComponentBinarySensor = "binary_sensor"
	ComponentSelect       = "select"
)

// unitMap translates the device's short ASCII unit strings into the strings
// Home Assistant expects ("C" -> "°C"). Unknown units pass through verbatim
// so nothing is lost on future firmware.
var unitMap = map[string]string{
	"C":   "°C",
	"Bar": "bar",
	"mV":  "mV",
	"pH":  "pH",
	"%":   "%",
	"ml":  "mL",
	"l/h": "L/h",
	"h":   "h",
	"--":  "",
	"":    "",
}

var deviceClass = map[string]string{
	"°C":  "temperature",
	"bar": "pressure",
	"mV":  "voltage",
}

// The consumption counters only ever grow (a canister refill resets them on
// the device UI, which is not observable here), so total_increasing is the
// closest state class and keeps long-term statistics working.
var stateClass = map[string]string{
	"°C":  "measurement",
	"bar": "measurement",
	"mV":  "measurement",
	"pH":  "measurement",
	"%":   "measurement",
	"L/h": "measurement",
	"h":   "measurement",
	"mL":  "total_increasing",
}

// unitPrecision suggests frontend display rounding per unit; the published
// value keeps full precision.
var unitPrecision = map[string]int{
	"°C":  1,
	"bar": 3,
	"mV":  0,
	"pH":  2,
	"%":   0,
	"mL":  0,
	"L/h": 0,
	"h":   0,
}

// Entity is the static metadata of one published channel. It is derived from
// the snapshot's name/unit rows and stays stable across poll cycles.
type Entity struct {
	Col         int
	Component   string
	Name        string
	Unit        string // translated unit, "" when dimensionless
	DeviceClass string
	StateClass  string
	Precision   int // -1 when not applicable
}

// Device is the discovery device block shared by all entities of one unit.
type Device struct {
	ID        string
	Name      string
	Firmware  string
	ConfigURL string
}

// Entities classifies every active column of a snapshot:
//
//   - relay columns become select entities (auto/on/off)
//   - digital inputs with unit "--" become binary sensors
//   - the timer column is skipped (internal processing time, not useful)
//   - everything else becomes a numeric sensor
func Entities(s *procon.Snapshot) []Entity {
	var entities []Entity
	for col := range s.Names {
		if !s.IsActive(col) {
			continue
		}
		if procon.RangeTime.Contains(col) {
			continue
		}

		if procon.IsRelayColumn(col) {
			entities = append(entities, Entity{
				Col:       col,
				Component: ComponentSelect,
				Name:      s.Name(col),
				Precision: -1,
			})
			continue
		}

		csvUnit := s.Unit(col)
		if procon.RangeDigitalInputs.Contains(col) && csvUnit == "--" {
			entities = append(entities, Entity{
				Col:       col,
				Component: ComponentBinarySensor,
				Name:      s.Name(col),
				Precision: -1,
			})
			continue
		}

		unit, ok := unitMap[csvUnit]
		if !ok {
			unit = csvUnit
		}
		precision := 2
		if p, ok := unitPrecision[unit]; ok {
			precision = p
		}
		entities = append(entities, Entity{
			Col:         col,
			Component:   ComponentSensor,
			Name:        s.Name(col),
			Unit:        unit,
			DeviceClass: deviceClass[unit],
			StateClass:  stateClass[unit],
			Precision:   precision,
		})
	}
	return entities
}

// StatePayload renders the entity's current state from the snapshot.
// Numeric values are rounded to 6 decimals to suppress float noise.
func StatePayload(s *procon.Snapshot, e Entity) string {
	switch e.Component {
	case ComponentSelect:
		return string(s.RelayMode(e.Col))
	case ComponentBinarySensor:
		if s.Raw(e.Col) != 0 {
			return "ON"
		}
		return "OFF"
	default:
		if e.Col >= len(s.Values) {
			return ""
		}
		return strconv.FormatFloat(util.RoundTo(s.Values[e.Col], 6), 'f', -1, 64)
	}
}

// ObjectID is the per-entity id used in topics and unique ids.
func (e Entity) ObjectID() string { return fmt.Sprintf("channel_%d", e.Col) }

// ConfigTopic returns the retained discovery topic,
// <prefix>/<component>/procon_<deviceID>/<objectID>/config.
func (e Entity) ConfigTopic(discoveryPrefix, deviceID string) string {
	return fmt.Sprintf("%s/%s/procon_%s/%s/config", discoveryPrefix, e.Component, deviceID, e.ObjectID())
}

// Config builds the discovery payload. Optional fields are only present
// when set so Home Assistant applies its own defaults otherwise.
func (e Entity) Config(dev Device, stateTopic, commandTopic, availabilityTopic string) map[string]any {
	cfg := map[string]any{
		"name":               e.Name,
		"unique_id":          fmt.Sprintf("procon_%s_%s", dev.ID, e.ObjectID()),
		"state_topic":        stateTopic,
		"availability_topic": availabilityTopic,
		"device": map[string]any{
			"identifiers":       []string{"procon_" + dev.ID},
			"name":              dev.Name,
			"manufacturer":      "ProCon.IP",
			"model":             "Pool Controller",
			"sw_version":        dev.Firmware,
			"configuration_url": dev.ConfigURL,
		},
	}

	switch e.Component {
	case ComponentSelect:
		cfg["command_topic"] = commandTopic
		options := make([]string, len(procon.Modes))
		for i, m := range procon.Modes {
			options[i] = string(m)
		}
		cfg["options"] = options
	case ComponentSensor:
		if e.Unit != "" {
			cfg["unit_of_measurement"] = e.Unit
		}
		if e.DeviceClass != "" {
			cfg["device_class"] = e.DeviceClass
		}
		if e.StateClass != "" {
			cfg["state_class"] = e.StateClass
		}
		if e.Precision >= 0 {
			cfg["suggested_display_precision"] = e.Precision
		}
	}
	return cfg
}
