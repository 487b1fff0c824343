package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/robertfraefel/procon-bridge/internal/procon"
)

const columnCount = 42

// SimDevice holds the mutable CSV state of one simulated pool controller.
// Raws drift only when poked over the REST hooks or flipped by relay writes.
type SimDevice struct {
	mu sync.Mutex

	firmware string
	deviceID string

	names   [columnCount]string
	units   [columnCount]string
	offsets [columnCount]float64
	factors [columnCount]float64
	raws    [columnCount]int
}

// NewSimDevice seeds a plausible mid-season pool installation: five
// temperature probes, both electrodes, three internal relays, a flow
// sensor and the chlorine canister channels.
func NewSimDevice(firmware, deviceID string) *SimDevice {
	d := &SimDevice{firmware: firmware, deviceID: deviceID}
	for i := 0; i < columnCount; i++ {
		d.names[i] = "n.a."
		d.units[i] = "--"
		d.factors[i] = 1
	}

	d.set(0, "Zeit", "h", 0, 1, 8)

	d.set(6, "Redox", "mV", 0, 1, 702)
	d.set(7, "pH", "pH", 0, 0.01, 721)

	d.set(8, "Pool", "C", 0, 0.25, 94)
	d.set(9, "Absorber", "C", 0, 0.25, 131)
	d.set(10, "Kollektor", "C", 0, 0.25, 150)
	d.set(11, "Luft", "C", 0, 0.25, 102)
	d.set(12, "Technikraum", "C", 0, 0.25, 88)

	d.set(16, "Filterpumpe", "--", 0, 1, 0)
	d.set(17, "Heizung", "--", 0, 1, 0)
	d.set(18, "Beleuchtung", "--", 0, 1, 3)

	d.set(24, "Durchfluss", "--", 0, 1, 1)

	d.set(36, "Chlor", "%", 0, 1, 62)
	d.set(39, "Verbrauch Chlor", "ml", 0, 1, 48210)

	return d
}

func (d *SimDevice) set(col int, name, unit string, offset, factor float64, raw int) {
	d.names[col] = name
	d.units[col] = unit
	d.offsets[col] = offset
	d.factors[col] = factor
	d.raws[col] = raw
}

// renderCSV emits the six-row GetState.csv document the firmware produces.
func (d *SimDevice) renderCSV() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SYSINFO,%s,%s,0,0\r\n", d.firmware, d.deviceID)

	writeRow := func(format func(col int) string) {
		for i := 0; i < columnCount; i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(format(i))
		}
		b.WriteString("\r\n")
	}

	writeRow(func(i int) string { return d.names[i] })
	writeRow(func(i int) string { return d.units[i] })
	writeRow(func(i int) string { return strconv.FormatFloat(d.offsets[i], 'f', -1, 64) })
	writeRow(func(i int) string { return strconv.FormatFloat(d.factors[i], 'f', -1, 64) })
	writeRow(func(i int) string { return strconv.Itoa(d.raws[i]) })
	return b.String()
}

func (d *SimDevice) getStateHandler(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	body := d.renderCSV()
	d.mu.Unlock()

	w.Header().Set("Content-Type", "text/csv")
	fmt.Fprint(w, body)
}

// usrcfgHandler applies an ENA pattern the way the firmware does: relays
// with the manual bit set follow the on bit, relays with it clear fall back
// to automatic and keep whatever the automation last switched them to.
func (d *SimDevice) usrcfgHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	manual, on, err := parseENA(r.PostFormValue("ENA"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	for i, col := range procon.RelayColumns {
		if d.names[col] == "n.a." {
			continue
		}
		if manual&(1<<i) != 0 {
			d.raws[col] = 2 | int(on>>i&1)
		} else {
			d.raws[col] &= 1
		}
	}
	d.mu.Unlock()

	fmt.Fprint(w, "OK")
}

func parseENA(v string) (manual, on uint16, err error) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ENA must be <manual>,<on>, got %q", v)
	}
	m, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("ENA manual pattern: %w", err)
	}
	o, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("ENA on pattern: %w", err)
	}
	return uint16(m), uint16(o), nil
}

func (d *SimDevice) channelIndex(r *http.Request) (int, error) {
	col, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || col < 0 || col >= columnCount {
		return 0, fmt.Errorf("channel index must be 0..%d", columnCount-1)
	}
	return col, nil
}

func (d *SimDevice) getChannelHandler(w http.ResponseWriter, r *http.Request) {
	col, err := d.channelIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	resp := map[string]any{
		"column": col,
		"name":   d.names[col],
		"unit":   d.units[col],
		"raw":    d.raws[col],
		"value":  d.offsets[col] + d.factors[col]*float64(d.raws[col]),
	}
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (d *SimDevice) setChannelRawHandler(w http.ResponseWriter, r *http.Request) {
	col, err := d.channelIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var body struct {
		Raw int `json:"raw"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "body must be {\"raw\": <int>}", http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	d.raws[col] = body.Raw
	d.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}
