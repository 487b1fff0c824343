package procon

// The ProCon.IP returns its entire state as a fixed-layout CSV document from
// /GetState.csv. Every response carries the same columns in the same order;
// channels that are not physically wired are labelled "n.a." in the name row.
//
//	Row 0  SYSINFO  firmware version, device id, system flags
//	Row 1  Names    label per column (or "n.a.")
//	Row 2  Units    C, Bar, mV, pH, %, ml, l/h, -- per column
//	Row 3  Offsets  calibration offset, added after scaling
//	Row 4  Factors  scale factor for the raw integer
//	Row 5  Raws     raw integer readings
//
// Displayed value = offset + factor * raw.

// Range is a half-open [Start, End) span of CSV column indexes.
type Range struct {
	Start int
	End   int
}

func (r Range) Contains(col int) bool { return col >= r.Start && col < r.End }

// Column ranges per channel category (0-indexed, fixed by the firmware).
var (
	RangeTime                = Range{0, 1}   // internal processing timer (h)
	RangeAnalog              = Range{1, 6}   // general purpose analog channels
	RangeElectrodes          = Range{6, 8}   // Redox (mV) and pH
	RangeTemperatures        = Range{8, 16}  // up to eight temperature probes
	RangeRelays              = Range{16, 24} // eight internal relay outputs
	RangeDigitalInputs       = Range{24, 28} // flow sensor + digital I/O
	RangeExternalRelays      = Range{28, 36} // eight optional external relays
	RangeCanister            = Range{36, 39} // chemical canister fill levels (%)
	RangeCanisterConsumption = Range{39, 42} // cumulative chemical usage (ml)
)

// RelayColumns lists every relay column in bit-index order. Position i maps
// to bit i of the ENA patterns sent to /usrcfg.cgi: bit 0 is the first
// internal relay (col 16), bit 8 the first external relay (col 28).
var RelayColumns = buildRelayColumns()

func buildRelayColumns() []int {
	cols := make([]int, 0, 16)
	for c := RangeRelays.Start; c < RangeRelays.End; c++ {
		cols = append(cols, c)
	}
	for c := RangeExternalRelays.Start; c < RangeExternalRelays.End; c++ {
		cols = append(cols, c)
	}
	return cols
}

// IsRelayColumn reports whether col is one of the 16 fixed relay positions.
func IsRelayColumn(col int) bool {
	return RangeRelays.Contains(col) || RangeExternalRelays.Contains(col)
}

// RelayBitIndex maps a relay column to its bit position in the ENA patterns.
func RelayBitIndex(col int) (int, error) {
	for i, c := range RelayColumns {
		if c == col {
			return i, nil
		}
	}
	return 0, invalidRelayRequestf("column %d is not a relay column", col)
}

// placeholder label the firmware uses for channels that are not connected
const inactiveName = "n.a."
