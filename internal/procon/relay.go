package procon

import (
	"errors"
	"fmt"
)

// Each relay's raw value is a 2-bit field:
//
//	bit 0  on/off        0 = off, 1 = on
//	bit 1  manual/auto   0 = auto (device schedule), 1 = manual override
//
// With bit 1 clear the relay is in auto mode regardless of bit 0; the
// device firmware ignores the on bit there and so do we.
const (
	relayBitOn     = 1
	relayBitManual = 2
)

// Mode is the three-way relay state exposed to the control surface.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeOn   Mode = "on"
	ModeOff  Mode = "off"
)

// Modes lists the valid relay modes, auto first.
var Modes = []Mode{ModeAuto, ModeOn, ModeOff}

// ErrInvalidRelayRequest marks a caller programming error: an unknown mode
// or a column outside the 16 fixed relay positions.
var ErrInvalidRelayRequest = errors.New("invalid relay request")

func invalidRelayRequestf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRelayRequest, fmt.Sprintf(format, a...))
}

// DecodeMode maps a relay raw value to its three-way mode.
func DecodeMode(raw int) Mode {
	if raw&relayBitManual == 0 {
		return ModeAuto
	}
	if raw&relayBitOn != 0 {
		return ModeOn
	}
	return ModeOff
}

// ParseMode validates a mode string received from the outside.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeOn, ModeOff:
		return Mode(s), nil
	}
	return "", invalidRelayRequestf("unknown mode %q", s)
}

// RelayMode decodes the current mode of the relay at col. Missing trailing
// columns (older firmware) read as raw 0, i.e. auto.
func (s *Snapshot) RelayMode(col int) Mode {
	return DecodeMode(s.Raw(col))
}

// ComputeWritePattern rebuilds the full ENA bit patterns from a snapshot.
// /usrcfg.cgi replaces the state of every relay in one request, so a single
// relay change always starts from the complete current pattern.
//
// manualBits starts all-ones over the active width (8 bits, or 16 when any
// external relay column is active) and auto relays clear their bit; onBits
// starts at 0 and every relay whose raw on bit is set sets its bit, manual
// or not. Bit i corresponds to RelayColumns[i]. Iteration stops without
// error when the raw row is shorter than expected, tolerating older
// firmware.
func ComputeWritePattern(s *Snapshot) (manualBits, onBits uint16) {
	hasExternal := false
	for c := RangeExternalRelays.Start; c < RangeExternalRelays.End; c++ {
		if s.IsActive(c) {
			hasExternal = true
			break
		}
	}
	manualBits = 0xff
	if hasExternal {
		manualBits = 0xffff
	}

	for i, col := range RelayColumns {
		if col >= len(s.Raws) {
			break
		}
		mask := uint16(1) << i
		raw := s.Raws[col]
		if raw&relayBitManual == 0 {
			manualBits &^= mask
		}
		if raw&relayBitOn != 0 {
			onBits |= mask
		}
	}
	return manualBits, onBits
}

// ApplyMode flips the two bits at bitIndex to the requested mode and leaves
// every other bit untouched.
//
//	auto  clear manual, clear on
//	on    set manual, set on
//	off   set manual, clear on
func ApplyMode(manualBits, onBits uint16, bitIndex int, mode Mode) (uint16, uint16, error) {
	if bitIndex < 0 || bitIndex >= len(RelayColumns) {
		return manualBits, onBits, invalidRelayRequestf("bit index %d out of range", bitIndex)
	}
	mask := uint16(1) << bitIndex
	switch mode {
	case ModeAuto:
		manualBits &^= mask
		onBits &^= mask
	case ModeOn:
		manualBits |= mask
		onBits |= mask
	case ModeOff:
		manualBits |= mask
		onBits &^= mask
	default:
		return manualBits, onBits, invalidRelayRequestf("unknown mode %q", mode)
	}
	return manualBits, onBits, nil
}
