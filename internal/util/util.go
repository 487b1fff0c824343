package util

import (
	"math"
	"strings"
)

// BitPatternString renders the low count bits of a relay pattern as a
// "0101..." string, bit 0 first. Used when debug-logging ENA writes.
func BitPatternString(bits uint16, count int) string {
	var s strings.Builder
	for i := 0; i < count && i < 16; i++ {
		if bits&(1<<i) != 0 {
			s.WriteString("1")
		} else {
			s.WriteString("0")
		}
	}
	return s.String()
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
