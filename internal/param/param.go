// Package param converts between raw channel bytes and human-meaningful
// parameter values such as "open" or "strobe(0.4)".
package param

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dmxparams/internal/dmx"
	"dmxparams/internal/rangemap"
)

var (
	// ErrMissingRange is returned when a range definition has no dmx bounds.
	ErrMissingRange = errors.New("parameter range is missing")
	// ErrInvalidRange is returned for malformed dmx or value bounds.
	ErrInvalidRange = errors.New("invalid range")
	// ErrDuplicateRange is returned when two range definitions share a key.
	ErrDuplicateRange = errors.New("duplicate range key")
	// ErrReservedKey is returned for range keys that the value syntax reserves.
	ErrReservedKey = errors.New("reserved range key")
	// ErrChannel is returned for channel indices outside a universe.
	ErrChannel = errors.New("channel out of range")
	// ErrUnknownRange is returned when an encoded value names no known range.
	ErrUnknownRange = errors.New("unknown range")
	// ErrSyntax is returned for values that do not match the value grammar.
	ErrSyntax = errors.New("invalid value syntax")
)

const (
	// DefaultKey names the catch-all range that accepts plain numbers.
	DefaultKey = "default"
	// RawKey is the escape that writes a raw channel value, bypassing all ranges.
	RawKey = "dmx"
)

// Accessor reads and writes channel values on behalf of a parameter.
// Channels are relative to whatever the accessor represents (usually a device).
type Accessor interface {
	ChannelValue(channel int) uint8
	SetChannelValue(channel int, value uint8)
}

// Param is a logical parameter stored in one or more channels.
type Param interface {
	// Channels returns the channels the parameter occupies.
	Channels() []int
	// Decode reads the parameter from dev and returns its symbolic value.
	Decode(dev Accessor) string
	// Encode parses value and writes the resulting raw bytes to dev.
	Encode(dev Accessor, value string) error
}

// FormatNumber renders a decoded value with the shortest exact representation.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseFinite reports whether s is a plain finite number.
func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// toByte rounds v to the nearest channel value, saturating at the byte limits.
func toByte(v float64) uint8 {
	return uint8(math.Round(rangemap.Clamp(v, 0, dmx.MaxValue)))
}

func checkChannel(ch int) error {
	if !dmx.ValidChannel(ch) {
		return fmt.Errorf("%w: %d", ErrChannel, ch)
	}
	return nil
}
