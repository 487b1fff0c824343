package procon

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedResponse marks a structurally broken GetState.csv body.
// It is never retried at this layer; the caller keeps the previous snapshot.
var ErrMalformedResponse = errors.New("malformed GetState.csv response")

func malformedf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, a...))
}

// Snapshot is one decoded poll cycle, immutable once constructed. All six
// row slices are aligned by column index; Values is precomputed as
// Offsets[i] + Factors[i]*Raws[i] for every raw reading.
type Snapshot struct {
	SysInfo []string
	Names   []string
	Units   []string
	Offsets []float64
	Factors []float64
	Raws    []int
	Values  []float64
}

// ParseSnapshot decodes the raw body of /GetState.csv. Identical input
// always yields an identical Snapshot.
func ParseSnapshot(body string) (*Snapshot, error) {
	var lines []string
	for _, ln := range strings.Split(body, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, strings.TrimRight(ln, "\r"))
		}
	}
	if len(lines) < 6 {
		return nil, malformedf("expected >=6 rows, got %d", len(lines))
	}

	s := &Snapshot{
		SysInfo: splitTrimmed(lines[0]),
		Names:   strings.Split(lines[1], ","),
		Units:   strings.Split(lines[2], ","),
	}

	var err error
	if s.Offsets, err = parseFloatRow(lines[3], "offsets"); err != nil {
		return nil, err
	}
	if s.Factors, err = parseFloatRow(lines[4], "factors"); err != nil {
		return nil, err
	}

	// Some firmware versions format the raw readings as floats ("124.0"),
	// so parse through float before truncating to int.
	rawFloats, err := parseFloatRow(lines[5], "raws")
	if err != nil {
		return nil, err
	}
	s.Raws = make([]int, len(rawFloats))
	for i, v := range rawFloats {
		s.Raws[i] = int(v)
	}

	// Precompute the display values eagerly. A shorter offset or factor row
	// is an inconsistent response, not something to zero-pad over.
	s.Values = make([]float64, len(s.Raws))
	for i, raw := range s.Raws {
		if i >= len(s.Offsets) || i >= len(s.Factors) {
			return nil, malformedf("row length mismatch: %d raws but %d offsets / %d factors",
				len(s.Raws), len(s.Offsets), len(s.Factors))
		}
		s.Values[i] = s.Offsets[i] + s.Factors[i]*float64(raw)
	}

	return s, nil
}

func splitTrimmed(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseFloatRow(line, row string) ([]float64, error) {
	parts := strings.Split(line, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, malformedf("%s[%d]: %q is not numeric", row, i, p)
		}
		out[i] = v
	}
	return out, nil
}

// Firmware returns the version string from SYSINFO token 1, or "unknown"
// when the row is unexpectedly short.
func (s *Snapshot) Firmware() string {
	if len(s.SysInfo) > 1 {
		return s.SysInfo[1]
	}
	return "unknown"
}

// DeviceID returns the unit identifier from SYSINFO token 2. Empty on very
// old firmware; callers fall back to host:port then.
func (s *Snapshot) DeviceID() string {
	if len(s.SysInfo) > 2 {
		return s.SysInfo[2]
	}
	return ""
}

// IsActive reports whether col carries a real, non-placeholder label.
// Inactive columns are excluded from every derived entity and pattern width.
func (s *Snapshot) IsActive(col int) bool {
	if col < 0 || col >= len(s.Names) {
		return false
	}
	name := strings.ToLower(strings.TrimSpace(s.Names[col]))
	return name != inactiveName && name != ""
}

// Name returns the trimmed column label, or "" when out of range.
func (s *Snapshot) Name(col int) string {
	if col < 0 || col >= len(s.Names) {
		return ""
	}
	return strings.TrimSpace(s.Names[col])
}

// Unit returns the trimmed raw CSV unit string, or "" when out of range.
func (s *Snapshot) Unit(col int) string {
	if col < 0 || col >= len(s.Units) {
		return ""
	}
	return strings.TrimSpace(s.Units[col])
}

// Raw returns the raw integer reading for col, or 0 when out of range.
func (s *Snapshot) Raw(col int) int {
	if col < 0 || col >= len(s.Raws) {
		return 0
	}
	return s.Raws[col]
}
